package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agrolink/app"
	"github.com/kilianp07/agrolink/config"
	"github.com/kilianp07/agrolink/infra/logger"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "agrolink",
	Short: "Field device control and monitoring service",
	Long: `agrolink sends commands to field devices through the remote IoT platform,
confirms them against the reported state and monitors device reachability and
sensor thresholds. Without a subcommand it runs the monitors until interrupted.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: applyLogLevel,
	RunE:              run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "minimum log level (overrides LOG_LEVEL)")
}

// applyLogLevel exports --log-level before any logger is created.
func applyLogLevel(*cobra.Command, []string) error {
	if logLevel == "" {
		return nil
	}
	return os.Setenv("LOG_LEVEL", logLevel)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)
	return svc.Run(ctx)
}

func newService() (*app.Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}
