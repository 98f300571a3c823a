package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/photodump/internal/config"
	"github.com/Veraticus/photodump/internal/server"
	"github.com/Veraticus/photodump/internal/session"
	"github.com/Veraticus/photodump/internal/storage"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload-and-select web API",
		Long: `Start the HTTP API the web front end talks to: photo uploads, category
management, run control, and websocket lifecycle events. One selection run
is allowed at a time; connected clients all observe the same run.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = viper.GetString("server.addr")
	}

	uploadsDir := config.ExpandPath(viper.GetString("dirs.uploads"))
	outputDir := config.ExpandPath(viper.GetString("dirs.output"))

	files := storage.NewFSStore()

	eng, cleanup, err := buildEngine(files, pipelineConfig())
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

	coordinator := session.NewCoordinator(files, uploadsDir, outputDir)

	srv := server.New(eng, coordinator, files, server.Config{
		Addr:           addr,
		UploadsDir:     uploadsDir,
		OutputDir:      outputDir,
		CategoriesFile: config.ExpandPath(viper.GetString("categories.file")),
	})

	return srv.ListenAndServe(ctx)
}
