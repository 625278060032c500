// etl — инструмент командной строки etlflows.
//
// Использование:
//
//	etl [--api-url URL] [--json] <command> [flags]
//
// Локальные команды:
//
//	run         Запуск pipeline для одного репозитория
//	validate    Проверка JSON документа ядром
//	schema      JSON Schema записи
//
// Команды API:
//
//	deploy      Регистрация deployments из YAML
//	deployment  Просмотр и удаление deployments
//	submit      Запуск deployment
//	runs        Просмотр runs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/etlflows/internal/cli"
	"github.com/shaiso/etlflows/internal/config"
	"github.com/shaiso/etlflows/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "etl",
		Short:         "etlflows CLI — GitHub repository stats ETL",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API server URL (default ETL_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client {
		if apiURL == "" {
			apiURL = os.Getenv("ETL_API_URL")
		}
		if apiURL == "" {
			apiURL = "http://localhost:8080"
		}
		return cli.NewClient(apiURL)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	factoryFn := func() (cli.RunnerFactory, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		// Логи в stderr: stdout занят данными (--json).
		logger := telemetry.NewLogger(os.Stderr, telemetry.LogLevel(), "text")
		return cli.LocalPipeline(cfg, logger), nil
	}

	rootCmd.AddCommand(
		cli.NewRunCmd(factoryFn, outputFn),
		cli.NewValidateCmd(outputFn),
		cli.NewSchemaCmd(outputFn),
		cli.NewDeployCmd(clientFn, outputFn),
		cli.NewDeploymentCmd(clientFn, outputFn),
		cli.NewSubmitCmd(clientFn, outputFn),
		cli.NewRunsCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
