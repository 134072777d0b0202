package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the autoreply application
var rootCmd = &cobra.Command{
	Use:   "autoreply",
	Short: "Replies once to every Gmail thread you have not answered",
	Long: `autoreply watches a Gmail inbox after a one-time OAuth consent.

Every 45 to 120 seconds it scans the inbox, sends a fixed reply into each
thread you have not written in yet and tags the thread with a label so it is
never answered twice.

Run "autoreply serve" (the default), open the printed URL and grant access.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// global flags shared by every command
var (
	configPath      string
	credentialsPath string
	logLevel        string
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "autoreply version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML settings file")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "", "Path to the OAuth client credentials JSON (default: credentials.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthURLCmd())
	rootCmd.AddCommand(newVersionCmd())
}
