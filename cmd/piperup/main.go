package main

import (
	"os"

	"github.com/spf13/cobra"
)

const rootLong = `piperup makes sure the Piper TTS container is running and answering on
its published port, then replaces itself with the configured foreground
command. It prints nothing of its own unless logging is enabled.`

var (
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "piperup",
		Short:        "Ensure the Piper TTS container is up, then exec the speak server",
		Long:         rootLong,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runSupervise,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $PIPERUP_CONFIG or ~/.config/piperup/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log supervisor decisions to stderr")

	configCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	configCmd.AddCommand(configValidateCmd(), configShowCmd())

	imageCmd := &cobra.Command{Use: "image", Short: "Build the TTS service image"}
	imageCmd.AddCommand(imageBuildCmd(), imageDockerfileCmd())

	root.AddCommand(
		statusCmd(),
		configCmd,
		imageCmd,
	)

	return root
}
