package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/photodump/internal/cli"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past selection runs",
		Long:  `List recorded selection runs and show what each of them selected.`,
	}

	cmd.AddCommand(listRunsCmd())
	cmd.AddCommand(showRunCmd())

	return cmd
}

func listRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initRunStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No runs recorded yet. Use 'photodump dump' to start one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Started"),
				cli.TableHeaderStyle.Render("State"),
				cli.TableHeaderStyle.Render("Photos"),
				cli.TableHeaderStyle.Render("Selected"),
				cli.TableHeaderStyle.Render("Album"))

			for _, run := range runs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.State,
					run.PhotoCount,
					run.SelectedCount,
					run.AlbumDir)
			}

			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum runs to list")

	return cmd
}

func showRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the selection of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			store, err := initRunStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(ctx, id)
			if err != nil {
				return err
			}

			selection, err := store.GetSelection(ctx, id)
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Run %d (%s)", run.ID, run.State)))
			if run.Error != "" {
				fmt.Println(cli.FormatError(run.Error))
			}
			for _, category := range selection.Categories() {
				fmt.Println(cli.CategoryStyle.Render(category))
				for _, photo := range selection[category] {
					fmt.Printf("  %s\n", filepath.Base(photo))
				}
			}

			return nil
		},
	}
}
