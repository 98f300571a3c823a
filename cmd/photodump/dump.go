package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/photodump/internal/cli"
	"github.com/Veraticus/photodump/internal/config"
	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/storage"
)

func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <album-dir>",
		Short: "Select the best photos from an album directory",
		Long: `Run the full selection pipeline over a local album: classify every photo
into your categories, rank within each category, and copy the winners into
per-category folders under the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runDump,
	}

	cmd.Flags().StringP("output", "o", "", "output directory (default: <album-dir>/photodump)")
	cmd.Flags().StringP("categories", "c", "", "categories file, one category per line")
	cmd.Flags().IntP("top-k", "k", 0, "photos to keep per category")
	cmd.Flags().Int("pre-filter", 0, "confidence-ranked candidates to score per category (0 = all)")
	cmd.Flags().Float64("aesthetic-weight", -1, "weight of the aesthetic score in [0,1]")
	cmd.Flags().Int("batch-size", 0, "photos per classifier batch")
	cmd.Flags().Int("dedupe-distance", -1, "perceptual hash distance treated as duplicate (0 = off)")
	_ = cmd.MarkFlagRequired("categories")

	return cmd
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	albumDir := config.ExpandPath(args[0])

	outputDir, _ := cmd.Flags().GetString("output")
	if outputDir == "" {
		outputDir = filepath.Join(albumDir, "photodump")
	}

	categoriesPath, _ := cmd.Flags().GetString("categories")
	f, err := os.Open(config.ExpandPath(categoriesPath))
	if err != nil {
		return fmt.Errorf("cannot open categories file: %w", err)
	}
	categories, err := model.ParseCategories(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	cfg := pipelineConfig()
	if v, _ := cmd.Flags().GetInt("top-k"); v > 0 {
		cfg.KeepTopK = v
	}
	if cmd.Flags().Changed("pre-filter") {
		cfg.PreFilter, _ = cmd.Flags().GetInt("pre-filter")
	}
	if v, _ := cmd.Flags().GetFloat64("aesthetic-weight"); v >= 0 {
		cfg.AestheticWeight = v
	}
	if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
		cfg.BatchSize = v
	}
	if v, _ := cmd.Flags().GetInt("dedupe-distance"); v >= 0 {
		cfg.DedupeDistance = v
	}

	files := storage.NewFSStore()

	photos, err := files.ListImages(ctx, albumDir)
	if err != nil {
		return err
	}
	cfg.OnProgress = cli.NewClassifyProgress(os.Stderr, len(photos))

	eng, cleanup, err := buildEngine(files, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := initRunStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	eng.WithRunStore(store)

	selection, err := eng.Run(ctx, albumDir, outputDir, categories)
	if err != nil {
		return err
	}

	printSelection(selection, outputDir)
	return nil
}

func printSelection(selection model.Selection, outputDir string) {
	fmt.Println(cli.TitleStyle.Render(cli.CameraIcon + " Photo dump"))

	empty := 0
	for _, category := range selection.Categories() {
		photos := selection[category]
		if len(photos) == 0 {
			empty++
			continue
		}
		fmt.Println(cli.CategoryStyle.Render(category))
		for _, photo := range photos {
			fmt.Printf("  %s\n", filepath.Base(photo))
		}
	}

	if empty > 0 {
		fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d categories ended up empty", empty)))
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Selected %d photos into %s", selection.Photos(), outputDir)))
}
