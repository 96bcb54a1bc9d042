package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Import built-in processors to register them
	_ "github.com/longcipher/sui-indexer/examples/processors/protocol"
	"github.com/longcipher/sui-indexer/internal/common"
	"github.com/longcipher/sui-indexer/internal/config"
	"github.com/longcipher/sui-indexer/internal/indexer"
	"github.com/longcipher/sui-indexer/internal/ingester"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/internal/metrics"
	"github.com/longcipher/sui-indexer/pkg/api"
	pkgconfig "github.com/longcipher/sui-indexer/pkg/config"
	"github.com/longcipher/sui-indexer/pkg/processor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	version = "0.1.0"
	banner  = `
╔═══════════════════════════════════════════╗
║            sui-indexer v%s             ║
║      Sui Checkpoint Event Indexer         ║
╚═══════════════════════════════════════════╝
`
	shutdownTimeout = 10 * time.Second
)

var (
	configPath   string
	exampleFmt   string
	statusFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sui-indexer",
	Short: "sui-indexer - Sui checkpoint event indexer",
	Long: `sui-indexer follows a Sui full node checkpoint by checkpoint, filters and processes
the events and transactions it contains, and stores them in PostgreSQL or SQLite
together with the last fully committed checkpoint.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runStart,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start indexing",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indexing progress",
	Long:  `Show the last committed checkpoint, the node's latest checkpoint and the stored row counts.`,
	RunE:  runStatus,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := encodeConfig(pkgconfig.Example(), exampleFmt)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := pkgconfig.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables that override configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := config.EnvKeys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), key); err != nil {
				return err
			}
		}
		return nil
	},
}

var processorsCmd = &cobra.Command{
	Use:   "processors",
	Short: "List available processors",
	Long:  `List all registered processors that can be used in the events.processor section.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Available processors:")
		for _, name := range processor.ListRegistered() {
			fmt.Fprintf(out, "  - %s\n", name)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml",
		"path to configuration file (empty to configure from SUI_INDEXER__* environment variables only)")

	configExampleCmd.Flags().StringVarP(&exampleFmt, "format", "f", "yaml", "output format: yaml, json or toml")
	statusCmd.Flags().StringVarP(&statusFormat, "output", "o", "text", "output format: text or json")

	configCmd.AddCommand(configExampleCmd, configSchemaCmd, configEnvCmd)
	rootCmd.AddCommand(startCmd, statusCmd, configCmd, processorsCmd)
}

func encodeConfig(cfg *pkgconfig.Config, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "toml":
		return pkgconfig.EncodeTOML(cfg)
	default:
		return nil, fmt.Errorf("unsupported format %q (supported: yaml, json, toml)", format)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(common.ComponentIndexer, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx := indexer.New(cfg)

	// The first signal lets the checkpoint in flight finish, the second one aborts.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		fmt.Println("\n\nShutting down gracefully...")
		idx.Shutdown()

		select {
		case <-sigCh:
			log.Warn("second signal received, aborting")
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("connecting to database and full node...")
	if err := idx.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize indexer: %w", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Warnf("failed to close indexer: %v", err)
		}
	}()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics, idx.Health, newLogger(common.ComponentMetrics, cfg))
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				log.Warnf("failed to stop metrics server: %v", err)
			}
		}()
	}

	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, idx.Store(), newLogger(common.ComponentAPI, cfg))
		apiCtx, apiCancel := context.WithCancel(ctx)
		apiDone := make(chan struct{})
		go func() {
			defer close(apiDone)
			if err := apiServer.Start(apiCtx); err != nil {
				log.Errorf("api server: %v", err)
			}
		}()
		defer func() {
			apiCancel()
			<-apiDone
		}()
	}

	log.Info("starting sui-indexer...")
	if err := idx.Start(ctx); err != nil {
		var fatal *ingester.FatalError
		if errors.As(err, &fatal) {
			log.Errorw("indexer halted", "state", fatal.State.String(), "last_committed", fatal.LastCommitted)
		}
		return fmt.Errorf("indexer failed: %w", err)
	}

	log.Info("sui-indexer stopped successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout.Duration)
	defer cancel()

	idx := indexer.New(cfg)
	if err := idx.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize indexer: %w", err)
	}
	defer idx.Close()

	st, err := idx.Status(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Fprintf(out, "stream:            %s\n", st.Progress.Stream)
	fmt.Fprintf(out, "last committed:    %d (updated %s)\n", st.Progress.Sequence, st.Progress.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "latest checkpoint: %d\n", st.Latest)
	fmt.Fprintf(out, "lag:               %d\n", st.Lag)
	fmt.Fprintf(out, "events:            %d\n", st.Events)
	fmt.Fprintf(out, "transactions:      %d\n", st.Transactions)
	return nil
}

func newLogger(component string, cfg *pkgconfig.Config) *logger.Logger {
	if cfg.Logging == nil {
		return logger.NewComponentLoggerFromConfig(component, nil)
	}
	return logger.NewComponentLoggerFromConfig(component, cfg.Logging)
}
