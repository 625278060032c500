package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/etlflows/internal/deploy"
)

// NewDeployCmd создаёт команду deploy: загрузка deployment.yaml в API.
func NewDeployCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Register deployments from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deployments, err := deploy.LoadFile(file)
			if err != nil {
				return err
			}

			client := clientFn()
			out := outputFn()

			created := make([]DeploymentResponse, 0, len(deployments))
			for i := range deployments {
				d, err := client.CreateDeployment(cmd.Context(), &deployments[i])
				if err != nil {
					return fmt.Errorf("deploy %s: %w", deployments[i].Name, err)
				}
				created = append(created, *d)
				out.Success(fmt.Sprintf("Deployment registered: %s (pool %s)", d.Name, d.WorkPool))
			}

			out.Print(deploymentHeaders, deploymentRows(created), created)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", deploy.DefaultFile, "Path to deployment YAML")

	return cmd
}

// NewDeploymentCmd создаёт группу команд для просмотра deployments.
func NewDeploymentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deployment",
		Aliases: []string{"deployments"},
		Short:   "Manage deployments",
	}

	cmd.AddCommand(
		newDeploymentListCmd(clientFn, outputFn),
		newDeploymentShowCmd(clientFn, outputFn),
		newDeploymentDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var deploymentHeaders = []string{"NAME", "FLOW", "POOL", "RETRIES", "SCHEDULE", "NEXT_RUN"}

func deploymentRows(deployments []DeploymentResponse) [][]string {
	rows := make([][]string, len(deployments))
	for i, d := range deployments {
		rows[i] = []string{d.Name, d.Flow, d.WorkPool, strconv.Itoa(d.Retries), d.Schedule, d.NextRunAt}
	}
	return rows
}

func newDeploymentListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			deployments, err := clientFn().ListDeployments(cmd.Context())
			if err != nil {
				return err
			}

			outputFn().Print(deploymentHeaders, deploymentRows(deployments), deployments)
			return nil
		},
	}
}

func newDeploymentShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show deployment details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := clientFn().GetDeployment(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outputFn().Fields([][2]string{
				{"Name", d.Name},
				{"Flow", d.Flow},
				{"Entrypoint", d.Entrypoint},
				{"Work pool", d.WorkPool},
				{"Tags", strings.Join(d.Tags, ", ")},
				{"Retries", strconv.Itoa(d.Retries)},
				{"Retry delay", fmt.Sprintf("%ds", d.RetryDelaySec)},
				{"Schedule", d.Schedule},
				{"Next run", d.NextRunAt},
				{"Parameters", formatParams(d.Parameters)},
				{"Updated", d.UpdatedAt},
			}, d)
			return nil
		},
	}
}

func newDeploymentDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteDeployment(cmd.Context(), args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Deployment deleted: %s", args[0]))
			return nil
		},
	}
}
