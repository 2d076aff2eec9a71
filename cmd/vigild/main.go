package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vigil-web/vigil"
	"github.com/vigil-web/vigil/config"
	"github.com/vigil-web/vigil/internal/logger"
	"github.com/vigil-web/vigil/registry"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	bindAddr string
	tlsAddr  string
	unixPath string
)

var rootCmd = &cobra.Command{
	Use:   "vigild",
	Short: "vigil telemetry agent",
	Long:  "The vigil telemetry agent and its embedded web server.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the embedded web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		logger.Initialize(cfg.Log)
		defer logger.Sync()

		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}

		reg := registry.New(&registry.Host{
			Hostname: hostname,
			GUID:     uuid.NewSHA1(uuid.NameSpaceDNS, []byte(hostname)).String(),
		})

		app := vigil.New(cfg, reg)

		if bindAddr != "" {
			app.Listen(bindAddr)
		}
		if unixPath != "" {
			app.Unix(unixPath)
		}
		if tlsAddr != "" {
			app.TLS(tlsAddr)
		}

		ctx, stop := signal.NotifyContext(
			context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Get().Info("starting vigil web server",
			zap.String("version", vigil.Version),
			zap.String("bind", bindAddr))

		return app.Serve(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file")
	serveCmd.Flags().StringVar(&bindAddr, "bind", "127.0.0.1:19999", "plain listener address")
	serveCmd.Flags().StringVar(&tlsAddr, "tls-bind", "", "TLS listener address")
	serveCmd.Flags().StringVar(&unixPath, "unix", "", "unix socket path")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Get().Error("command execution failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
