// Package cli implements the relaymux command-line entrypoint: serve,
// init, and version, wired with cobra the way the rest of the ecosystem's
// CLI tools are.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	log "github.com/relaymux/gateway/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relaymux",
	Short: "Multi-tenant reverse proxy for LLM inference APIs",
	Long: `relaymux fronts Claude, OpenAI, Codex and Gemini CLI wire formats
behind a single endpoint, translating between them and routing each
request to a pool of upstream providers.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is the common case and not an error; godotenv
		// only overlays variables that aren't already set in the
		// environment.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config.yaml (default: $XDG_CONFIG_HOME/relaymux/config.yaml)")
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func configPathOrDefault() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "$XDG_CONFIG_HOME/relaymux/config.yaml"
}
