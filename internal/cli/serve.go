package cli

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relaymux/gateway/internal/api"
	"github.com/relaymux/gateway/internal/config"
	log "github.com/relaymux/gateway/internal/logging"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relaymux server",
	Long: `Start the relaymux API gateway server.

This is the main command to run the proxy server. It loads the
configuration, wires the forwarding pipeline, and starts the HTTP server.`,
	Run: func(c *cobra.Command, args []string) {
		log.SetupBaseLogger()

		path := configPathOrDefault()
		cfg, err := config.Load(path)
		if err != nil {
			log.Warnf("failed to load config (%v), starting with defaults", err)
			cfg = config.NewDefaultConfig()
		}

		if servePort != 0 {
			cfg.ListenAddr = overridePort(cfg.ListenAddr, servePort)
		}

		if err := log.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogPath); err != nil {
			log.Fatalf("failed to configure log output: %v", err)
			os.Exit(1)
		}
		log.SetDebug(cfg.Debug)

		if err := api.Run(cfg, path); err != nil {
			log.Fatalf("server exited: %v", err)
			os.Exit(1)
		}
	},
}

// overridePort keeps the configured host part, if any, and swaps in port.
func overridePort(addr string, port int) string {
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		return addr[:idx] + ":" + strconv.Itoa(port)
	}
	return ":" + strconv.Itoa(port)
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override the configured listen port")
	rootCmd.AddCommand(serveCmd)
}
