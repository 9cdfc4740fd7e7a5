package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbridge/finbridge/internal/auth"
	"github.com/finbridge/finbridge/internal/bridge"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/finbridge/finbridge/internal/logger"
	"github.com/finbridge/finbridge/internal/server"
	"github.com/finbridge/finbridge/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const startTimeout = 15 * time.Second

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "finbridge",
	Short: "OAuth authorization bridge for the finance backend",
	Long: `finbridge sits between a relying party and the upstream identity
provider: it validates authorization requests, completes the upstream
login, and exchanges single-use bridge codes for signed access tokens.`,
	Run: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *server.Server
	app := fx.New(
		fx.Supply(cfg),
		fx.NopLogger,
		bridge.Module,
		users.Module,
		auth.Module,
		server.Module,
		fx.Populate(&srv),
	)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logger.Fatal("Failed to start application", zap.Error(err))
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), startTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("Failed to stop application cleanly", zap.Error(err))
	}
}
