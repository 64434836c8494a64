package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaymux/gateway/internal/config"
	log "github.com/relaymux/gateway/internal/logging"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config and generate management key",
	Long: `Initialize relaymux configuration and generate a management key.

On first run, this writes a default config.yaml and a fresh
credentials.json. If a management key already exists, it is printed
instead of being regenerated; use --force to rotate it.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := configPathOrDefault()

		if _, err := os.Stat(mustResolve(path)); os.IsNotExist(err) {
			if err := config.Save(path, config.NewDefaultConfig()); err != nil {
				log.Fatalf("failed to write config: %v", err)
				os.Exit(1)
			}
			fmt.Printf("wrote config: %s\n", path)
		} else {
			fmt.Printf("config already exists: %s\n", path)
		}

		if forceInit {
			config.InvalidateCache()
		}

		if forceInit || !config.HasManagementKey() {
			key, err := config.CreateCredentials()
			if err != nil {
				log.Fatalf("failed to create credentials: %v", err)
				os.Exit(1)
			}
			fmt.Printf("management key: %s\n", key)
			return
		}

		fmt.Printf("management key: %s\n", config.GetManagementKey())
	},
}

func mustResolve(path string) string {
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return path
	}
	return resolved
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "force regenerate management key")
	rootCmd.AddCommand(initCmd)
}
