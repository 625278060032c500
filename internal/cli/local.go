package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/etlflows/internal/api"
	"github.com/shaiso/etlflows/internal/config"
	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/engine"
	"github.com/shaiso/etlflows/internal/fetch"
	"github.com/shaiso/etlflows/internal/notify"
	"github.com/shaiso/etlflows/internal/pipeline"
	"github.com/shaiso/etlflows/internal/storage"
)

// Режимы уведомлений локального запуска.
const (
	NotifyLog   = "log"
	NotifyEmail = "email"
	NotifyNone  = "none"
)

// ErrEmailNotConfigured — для --notify email не заданы SMTP или получатели.
var ErrEmailNotConfigured = errors.New("email notifications need SMTP_HOST, NOTIFY_FROM and NOTIFY_TO")

// Runner выполняет один ETL run.
type Runner interface {
	Run(ctx context.Context, runID uuid.UUID, cfg domain.ETLConfig) (*pipeline.Result, error)
}

// RunnerFactory собирает Runner под выбранный режим уведомлений.
type RunnerFactory func(notifyMode string) (Runner, error)

// LocalPipeline возвращает фабрику pipeline по настройкам окружения:
// GitHub клиент (с Redis кэшем, если задан REDIS_URL), хранилище по
// output_location и notifier по режиму.
func LocalPipeline(cfg config.Config, logger *slog.Logger) RunnerFactory {
	return func(notifyMode string) (Runner, error) {
		notifier, err := localNotifier(cfg, notifyMode, logger)
		if err != nil {
			return nil, err
		}

		var fetcher fetch.Fetcher = fetch.New(fetch.Config{
			BaseURL: cfg.GitHub.APIURL,
			Token:   cfg.GitHub.Token,
			Timeout: cfg.GitHub.Timeout,
		})
		if cfg.RedisURL != "" {
			rdb, err := fetch.NewRedisClient(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("redis: %w", err)
			}
			fetcher = fetch.NewCachedFetcher(fetcher, fetch.NewRedisCache(rdb), cfg.GitHub.CacheTTL, logger)
		}

		s3opts := storage.S3Options{Region: cfg.Storage.AWSRegion, Endpoint: cfg.Storage.S3Endpoint}

		p := pipeline.New(pipeline.Config{
			Fetcher: fetcher,
			OpenStore: func(ctx context.Context, location string) (storage.Store, error) {
				return storage.Open(ctx, location, storage.Options{S3: s3opts})
			},
			Notifier:     notifier,
			NotifyPolicy: cfg.Notify.Policy,
			Logger:       logger,
		})
		return defaultOutput{Runner: p, location: cfg.Storage.OutputLocation}, nil
	}
}

// defaultOutput подставляет OUTPUT_LOCATION, если --output не задан.
type defaultOutput struct {
	Runner
	location string
}

func (r defaultOutput) Run(ctx context.Context, runID uuid.UUID, cfg domain.ETLConfig) (*pipeline.Result, error) {
	if cfg.OutputLocation == "" {
		cfg.OutputLocation = r.location
	}
	return r.Runner.Run(ctx, runID, cfg)
}

func localNotifier(cfg config.Config, mode string, logger *slog.Logger) (notify.Notifier, error) {
	switch mode {
	case NotifyLog:
		return notify.NewLogNotifier(logger), nil
	case NotifyNone:
		return notify.Nop, nil
	case NotifyEmail:
		if !cfg.SMTP.Enabled() || !cfg.Notify.Enabled() {
			return nil, ErrEmailNotConfigured
		}
		client, err := notify.NewSMTPClient(notify.SMTPConfig(cfg.SMTP))
		if err != nil {
			return nil, err
		}
		return notify.NewEmailNotifier(client, notify.EmailConfig{
			From:      cfg.Notify.From,
			To:        cfg.Notify.To,
			FlowUIURL: cfg.Notify.FlowUIURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q (log, email, none)", mode)
	}
}

// NewRunCmd создаёт команду run: локальный запуск pipeline без API и очередей.
func NewRunCmd(factoryFn func() (RunnerFactory, error), outputFn func() *Output) *cobra.Command {
	var (
		repository string
		minStars   int64
		output     string
		notifyMode string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ETL pipeline locally for one repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := factoryFn()
			if err != nil {
				return err
			}
			runner, err := factory(notifyMode)
			if err != nil {
				return err
			}

			cfg := domain.ETLConfig{
				Repository:     repository,
				MinStars:       &minStars,
				OutputLocation: output,
			}

			result, err := runner.Run(cmd.Context(), uuid.New(), cfg)
			if err != nil {
				return err
			}

			out := outputFn()
			if result.Rejected() {
				out.Success(fmt.Sprintf("Record rejected: %s", result.Reason))
			} else {
				out.Success(fmt.Sprintf("Pipeline completed: %s", result.RunID))
			}

			pairs := [][2]string{
				{"Run", result.RunID.String()},
				{"Repository", result.Repository},
				{"Stage", string(result.Stage)},
				{"Outcome", string(result.Outcome)},
				{"Reason", result.Reason},
				{"Artifacts", formatArtifacts(result.Artifacts)},
			}
			if result.Aggregate != nil {
				pairs = append(pairs,
					[2]string{"Total engagement", strconv.FormatInt(result.Aggregate.TotalEngagement, 10)},
					[2]string{"Engagement ratio", strconv.FormatFloat(result.Aggregate.EngagementRatio, 'f', 2, 64)},
				)
			}
			out.Fields(pairs, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&repository, "repository", "", "GitHub repository as owner/name")
	cmd.Flags().Int64Var(&minStars, "min-stars", domain.DefaultMinStars, "Minimum stargazers_count")
	cmd.Flags().StringVar(&output, "output", "", "Output location: s3://, gs://, file:// or path (default OUTPUT_LOCATION)")
	cmd.Flags().StringVar(&notifyMode, "notify", NotifyLog, "Notifications: log, email or none")
	cmd.MarkFlagRequired("repository")

	return cmd
}

// NewValidateCmd создаёт команду validate: прогон ядра на JSON файле.
// FILE "-" читает stdin.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	var minStars int64

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate and transform a raw repository JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			resp, err := api.ValidateRecord(doc, minStars, time.Now())
			if err != nil {
				return err
			}

			out := outputFn()
			if !resp.Valid {
				out.Success(fmt.Sprintf("Record rejected (%s): %s", resp.Outcome, resp.Reason))
			}

			pairs := [][2]string{
				{"Outcome", resp.Outcome},
				{"Valid", strconv.FormatBool(resp.Valid)},
				{"Reason", resp.Reason},
				{"Min stars", strconv.FormatInt(resp.MinStars, 10)},
			}
			if resp.Aggregate != nil {
				pairs = append(pairs,
					[2]string{"Repository", resp.Aggregate.RepositoryName},
					[2]string{"Total engagement", strconv.FormatInt(resp.Aggregate.TotalEngagement, 10)},
					[2]string{"Engagement ratio", strconv.FormatFloat(resp.Aggregate.EngagementRatio, 'f', 2, 64)},
				)
			}
			out.Fields(pairs, resp)
			return nil
		},
	}

	cmd.Flags().Int64Var(&minStars, "min-stars", domain.DefaultMinStars, "Minimum stargazers_count")

	return cmd
}

// NewSchemaCmd создаёт команду schema: JSON Schema записи RepoStats.
func NewSchemaCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of a repository stats record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFn().JSON(engine.RepoStatsSchema())
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
