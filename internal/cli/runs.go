package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewSubmitCmd создаёт команду submit: запуск deployment через API.
func NewSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "submit DEPLOYMENT",
		Short: "Submit a run for a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseParams(params)
			if err != nil {
				return err
			}

			run, err := clientFn().SubmitRun(cmd.Context(), args[0], SubmitRunRequest{Parameters: overrides})
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Run submitted: %s", run.ID))
			out.Print(runHeaders, runRows([]RunResponse{*run}), run)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&params, "param", nil, "Parameter override as KEY=VALUE (repeatable)")

	return cmd
}

// NewRunsCmd создаёт группу команд для просмотра runs.
func NewRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs",
	}

	cmd.AddCommand(
		newRunsListCmd(clientFn, outputFn),
		newRunsShowCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "DEPLOYMENT", "FLOW", "STATUS", "STAGE", "ATTEMPT", "CREATED"}

func runRows(runs []RunResponse) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{r.ID, r.Deployment, r.Flow, r.Status, r.Stage, strconv.Itoa(r.Attempt), r.CreatedAt}
	}
	return rows
}

func newRunsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := clientFn().ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			outputFn().Print(runHeaders, runRows(runs), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Deployment, "deployment", "", "Filter by deployment")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, REJECTED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := clientFn().GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outputFn().Fields([][2]string{
				{"ID", run.ID},
				{"Deployment", run.Deployment},
				{"Flow", run.Flow},
				{"Status", run.Status},
				{"Stage", run.Stage},
				{"Attempt", strconv.Itoa(run.Attempt)},
				{"Parameters", formatParams(run.Parameters)},
				{"Rejection", run.RejectionReason},
				{"Error", run.Error},
				{"Artifacts", formatArtifacts(run.Artifacts)},
				{"Started", run.StartedAt},
				{"Finished", run.FinishedAt},
				{"Created", run.CreatedAt},
			}, run)
			return nil
		},
	}
}

// parseParams разбирает KEY=VALUE. Значение, которое читается как JSON
// (число, bool, объект), передаётся типизированным, иначе строкой.
func parseParams(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}

	params := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter format %q, expected KEY=VALUE", kv)
		}

		var typed any
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			params[key] = typed
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func formatParams(params map[string]any) string {
	keys := slices.Sorted(maps.Keys(params))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}

func formatArtifacts(artifacts map[string]string) string {
	keys := slices.Sorted(maps.Keys(artifacts))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + artifacts[k]
	}
	return strings.Join(parts, " ")
}
