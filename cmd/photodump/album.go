package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/photodump/internal/album"
	"github.com/Veraticus/photodump/internal/cli"
	"github.com/Veraticus/photodump/internal/config"
	"github.com/Veraticus/photodump/internal/storage"
)

func albumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "album <dir>",
		Short: "Inspect the photos of an album directory",
		Long:  `List the album's photos with their size, pixel dimensions and EXIF capture time.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.ExpandPath(args[0])

			infos, err := album.Scan(cmd.Context(), storage.NewFSStore(), dir)
			if err != nil {
				return err
			}

			if len(infos) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No photos found in " + dir))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Photo"),
				cli.TableHeaderStyle.Render("Size"),
				cli.TableHeaderStyle.Render("Dimensions"),
				cli.TableHeaderStyle.Render("Taken"))

			for _, info := range infos {
				taken := "-"
				if !info.TakenAt.IsZero() {
					taken = info.TakenAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\n",
					info.Name, formatBytes(info.Bytes), info.Width, info.Height, taken)
			}

			return nil
		},
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
