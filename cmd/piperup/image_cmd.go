package main

import (
	"github.com/spf13/cobra"

	"piperup/internal/config"
	"piperup/internal/container"
	"piperup/internal/image"
)

func imageBuildCmd() *cobra.Command {
	var opts image.BuildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the Piper TTS image with the Docker daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			if opts.Tag == "" {
				opts.Tag = cfg.Service.Image
			}

			docker, err := container.NewClient()
			if err != nil {
				return err
			}
			defer docker.Close()

			return image.Build(cmd.Context(), docker, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Tag, "tag", "", "image tag (default service.image from config)")
	cmd.Flags().StringVar(&opts.Voice, "voice", image.DefaultVoice, "Piper voice to bake into the image")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "do not use the build cache")
	return cmd
}

func imageDockerfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dockerfile",
		Short: "Print the embedded Dockerfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(image.Dockerfile)
			return err
		},
	}
}
