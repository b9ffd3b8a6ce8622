// Command aetherctl starts and follows orchestration runs against a running
// engine, and previews offline what the engine would scaffold for a prompt.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aether-os/engine/internal/architect"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	apiURL string
	token  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "aetherctl",
		Short:         "Drive the Aether engine from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.apiURL, "api", envOr("AETHER_API_URL", "http://localhost:8080/api/v1"), "engine API base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("AETHER_TOKEN"), "bearer token")

	root.AddCommand(newBlueprintCmd(), newInitCmd(g), newStatusCmd(g), newAbortCmd(g))
	return root
}

func newBlueprintCmd() *cobra.Command {
	var sqlOnly bool
	cmd := &cobra.Command{
		Use:   "blueprint <prompt>",
		Short: "Print the offline blueprint chosen for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if sqlOnly {
				_, err := fmt.Fprintln(out, architect.GenerateSQL(args[0]))
				return err
			}
			name, bp := architect.MatchFixture(args[0])
			fmt.Fprintf(out, "# fixture: %s\n", name)
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(bp); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&sqlOnly, "sql", false, "print only the SQL derived from the prompt's entities")
	return cmd
}

func newInitCmd(g *globalFlags) *cobra.Command {
	var (
		name        string
		accessToken string
		follow      bool
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "init <prompt>",
		Short: "Start a project initialization run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(g.apiURL, g.token)
			run, err := c.StartRun(cmd.Context(), name, args[0], accessToken)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s %s\n", run.ID, run.Status)
			if !follow {
				return nil
			}
			return c.Follow(cmd.Context(), run.ID.String(), interval, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&accessToken, "github-token", "", "user GitHub token used for the repository step")
	cmd.Flags().BoolVarP(&follow, "follow", "f", true, "stream the run log until it finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval while following")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(g.apiURL, g.token)
			if follow {
				return c.Follow(cmd.Context(), args[0], 2*time.Second, cmd.OutOrStdout())
			}
			run, err := c.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream the run log until it finishes")
	return cmd
}

func newAbortCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "abort <run-id>",
		Short: "Ask a run to stop before its next step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(g.apiURL, g.token).AbortRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "abort requested")
			return nil
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
