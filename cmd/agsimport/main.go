// Command agsimport inspects, summarizes and commits AGS files from the
// command line, using the same configuration as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/geoimport/internal/app"
	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

func main() {
	// A missing .env is fine; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Getenv)
	if err := root.ExecuteContext(ctx); err != nil {
		msg := core.MapError(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if msg.Code != "" {
			fmt.Fprintf(os.Stderr, "%s (%s): %s\n", msg.Message, msg.Code, msg.Action)
		}
		stop()
		os.Exit(1)
	}
}

type cli struct {
	getenv func(string) string
	output string
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	c := &cli{getenv: getenv}

	root := &cobra.Command{
		Use:           "agsimport",
		Short:         "Import AGS4 geotechnical data",
		Long:          "Parse AGS4 files, reconcile them against stored entities and commit the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.output != "text" && c.output != "json" {
				return fmt.Errorf("unknown output format %q (use text or json)", c.output)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "text", "Output format: text or json")

	root.AddCommand(
		c.inspectCmd(),
		c.descriptorsCmd(),
		c.summarizeCmd(),
		c.runCmd(),
		c.commitCmd(),
		c.migrateCmd(),
	)
	return root
}

// open loads configuration and starts the import service. Logs go to stderr
// so stdout only carries command output.
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.LoadFrom(c.getenv)
	if err != nil {
		return nil, err
	}
	log := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	cmd.SetContext(logging.NewContext(cmd.Context(), log))
	return app.Open(cmd.Context(), cfg, log)
}

func (c *cli) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "List the groups of an AGS file without touching the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(c.getenv)
			if err != nil {
				return err
			}
			svc := core.NewService(nil, nil, nil, app.ServiceConfig(cfg.Import))

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := svc.Inspect(f)
			if err != nil {
				return err
			}

			if c.output == "json" {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GROUP\tROWS\tHEADINGS")
			for _, name := range doc.Names() {
				g := doc.Group(name)
				fmt.Fprintf(tw, "%s\t%d\t%d\n", name, g.Rows(), len(g.Headings()))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) descriptorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "descriptors",
		Short: "List the configured mapping descriptors, parents first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := app.Registry(c.getenv("IMPORT_MAPPING_FILE"))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tGROUP\tLABEL\tPARENT")
			for _, d := range reg.Ordered() {
				parent := "-"
				if d.Parent != nil {
					parent = d.Parent.ID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Group, d.Label, parent)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) summarizeCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "summarize FILE",
		Short: "Reconcile an AGS file against a project and stage the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := a.Service.Summarize(cmd.Context(), f, project)
			if err != nil {
				return err
			}
			return c.printSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project the import is scoped to (required)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run RUN_ID",
		Short: "Show a staged import run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Service.Run(cmd.Context(), runID)
			if err != nil {
				return err
			}
			return c.printSummary(cmd.OutOrStdout(), summary)
		},
	}
}

func (c *cli) commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit RUN_ID",
		Short: "Write a staged import run to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Service.Commit(cmd.Context(), runID)
			if err != nil {
				return err
			}

			if c.output == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tCREATED\tUPDATED")
			for _, d := range a.Registry.Ordered() {
				if n, ok := result.Counts[d.Label]; ok {
					fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Label, n.Created, n.Updated)
				}
			}
			return tw.Flush()
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(c.getenv)
			if err != nil {
				return err
			}
			cfg.Database.AutoMigrate = true

			log := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			a, err := app.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func (c *cli) printSummary(w io.Writer, s *core.ImportSummary) error {
	if c.output == "json" {
		return printJSON(w, s)
	}

	fmt.Fprintf(w, "run %s (project %s)\n\n", s.RunID, s.Scope)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESCRIPTOR\tSTATUS\tNEW\tUPDATED\tERRORS\tWARNINGS")
	for _, e := range s.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			e.Descriptor, e.Status, e.NewCount, e.UpdatedCount, len(e.Errors), len(e.Warnings))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, e := range s.Entries {
		if e.Reason != "" {
			fmt.Fprintf(w, "\n%s: %s\n", e.Descriptor, e.Reason)
		}
		for _, re := range e.Errors {
			fmt.Fprintf(w, "  %s\n", re.Error())
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
