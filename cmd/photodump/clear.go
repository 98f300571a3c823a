package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/photodump/internal/cli"
	"github.com/Veraticus/photodump/internal/config"
	"github.com/Veraticus/photodump/internal/session"
	"github.com/Veraticus/photodump/internal/storage"
)

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear uploaded photos and selection results",
		Long:  `Remove everything under the configured uploads and output directories.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uploadsDir := config.ExpandPath(viper.GetString("dirs.uploads"))
			outputDir := config.ExpandPath(viper.GetString("dirs.output"))

			coordinator := session.NewCoordinator(storage.NewFSStore(), uploadsDir, outputDir)
			if err := coordinator.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing session storage: %w", err)
			}

			fmt.Println(cli.FormatSuccess("Cleared uploads and output directories."))
			return nil
		},
	}
}
