package commands

import (
	"github.com/spf13/cobra"

	"chatcore/internal/app"
)

var (
	home       string
	relayURL   string
	configPath string
	password   string

	wire *app.Wire
)

// Execute runs the CLI.
func Execute() error {
	return NewRoot().Execute()
}

// NewRoot builds the command tree.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatcore",
		Short:        "End-to-end encrypted group chat CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadFromPath(configPath)
			if err != nil {
				return err
			}
			if home != "" {
				cfg.Home = home
			}
			if relayURL != "" {
				cfg.Relay.URL = relayURL
			}
			logger, err := app.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())

			wire, err = app.NewWire(cfg, logger)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.chatcore)")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./chatcore.yaml or <home>/config.yaml)")
	root.PersistentFlags().StringVarP(&password, "password", "p", "", "account password")

	root.AddCommand(
		registerCmd(),
		fingerprintCmd(),
		kdfCmd(),
		conversationCmd(),
		sendCmd(),
		recvCmd(),
		rotateCmd(),
		logoutCmd(),
	)
	return root
}
