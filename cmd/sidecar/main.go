package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lekkodev/sidecar/pkg/config"
	"github.com/lekkodev/sidecar/pkg/distclient"
	"github.com/lekkodev/sidecar/pkg/loader"
	"github.com/lekkodev/sidecar/pkg/log"
	"github.com/lekkodev/sidecar/pkg/metrics"
	"github.com/lekkodev/sidecar/pkg/poller"
	"github.com/lekkodev/sidecar/pkg/rpcapi"
	"github.com/lekkodev/sidecar/pkg/store"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/lekkodev/sidecar/pkg/watcher"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sidecar",
	Short:   "Co-located feature-flag evaluation sidecar",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("sidecar version %s\ncommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the sidecar evaluation and RPC surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runSidecar(cfg)
	},
}

func init() {
	runCmd.Flags().String("lekko-addr", "", "Distribution backend address (required in default mode)")
	runCmd.Flags().String("bind-addr", "127.0.0.1:50051", "Address the host-facing RPC surface listens on")
	runCmd.Flags().String("metrics-bind-addr", "127.0.0.1:9090", "Address the /health, /ready and /metrics HTTP server listens on")
	runCmd.Flags().String("api-key", "", "API key presented to the distribution backend")
	runCmd.Flags().String("mode", string(types.ModeDefault), "Data source mode: default (poll backend) or static (watch checkout)")
	runCmd.Flags().Duration("poll-interval", 30*time.Second, "Polling interval in default mode")
	runCmd.Flags().String("repo-path", "", "Path to an on-disk repository checkout (required in static mode)")
	runCmd.Flags().String("repo-url", "", "Repository key as owner/name (required in default mode)")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	lekkoAddr, _ := cmd.Flags().GetString("lekko-addr")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	metricsBindAddr, _ := cmd.Flags().GetString("metrics-bind-addr")
	apiKey, _ := cmd.Flags().GetString("api-key")
	mode, _ := cmd.Flags().GetString("mode")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	repoPath, _ := cmd.Flags().GetString("repo-path")
	repoURL, _ := cmd.Flags().GetString("repo-url")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")

	return config.Config{
		LekkoAddr:       lekkoAddr,
		BindAddr:        bindAddr,
		MetricsBindAddr: metricsBindAddr,
		APIKey:          apiKey,
		Mode:            types.Mode(mode),
		PollInterval:    pollInterval,
		RepoPath:        repoPath,
		RepoURL:         repoURL,
		LogLevel:        log.Level(logLevel),
		LogJSON:         logJSON,
	}, nil
}

// runSidecar wires the config store to whichever data source the
// configured mode names, brings up the metrics pipeline in default mode
// once registration with the distribution backend succeeds, starts the
// host-facing RPC and
// health surfaces, and blocks until an interrupt or a fatal surface
// error arrives.
func runSidecar(cfg config.Config) error {
	logger := log.WithComponent("sidecar")

	var repoKey types.RepositoryKey
	if cfg.RepoURL != "" {
		repoKey, _ = config.ParseRepositoryKey(cfg.RepoURL)
	}

	st := store.New(nil, "")
	var pipeline rpcapiPipeline = noopPipeline{}
	errCh := make(chan error, 2)

	switch cfg.Mode {
	case types.ModeDefault:
		client, err := distclient.New(cfg.LekkoAddr)
		if err != nil {
			return fmt.Errorf("dialing distribution backend: %w", err)
		}
		defer client.Close()

		sessionKey, err := client.RegisterClient(context.Background(), repoKey, cfg.APIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("registering with distribution backend failed, polling is not started and the sidecar falls back to serving its last loaded snapshot")
			break
		}
		defer func() {
			if err := client.DeregisterClient(context.Background(), sessionKey, cfg.APIKey); err != nil {
				logger.Warn().Err(err).Msg("deregistering from distribution backend failed")
			}
		}()

		creds := types.ConnectionCredentials{RepoKey: repoKey, APIKey: cfg.APIKey, SessionKey: sessionKey}

		mp := metrics.NewPipeline(client, creds)
		mp.Start()
		defer mp.Stop()
		pipeline = mp

		p := poller.New(client, st, creds, cfg.PollInterval)
		p.Start()
		defer p.Stop()
	case types.ModeStatic:
		result, err := loader.Load(cfg.RepoPath)
		if err != nil {
			return fmt.Errorf("loading initial repository checkout: %w", err)
		}
		st.Replace(result.Namespaces, result.Commit)
		repoKey = result.RepoKey

		w := watcher.New(cfg.RepoPath, st)
		w.Start()
		defer w.Stop()
	}

	healthServer := rpcapi.NewHealthServer(st)
	go func() {
		if err := healthServer.Start(cfg.MetricsBindAddr); err != nil {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()

	rpcServer := rpcapi.NewServer(st, pipeline, repoKey)
	go func() {
		if err := rpcServer.Start(cfg.BindAddr); err != nil {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	defer rpcServer.Stop()

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("bind_addr", cfg.BindAddr).
		Str("metrics_bind_addr", cfg.MetricsBindAddr).
		Msg("sidecar started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("surface failed")
		return err
	}

	return nil
}

// rpcapiPipeline narrows *metrics.Pipeline to the one method
// rpcapi.NewServer depends on, so static mode (which runs no pipeline)
// can pass a no-op stand-in instead of a nil interface value.
type rpcapiPipeline interface {
	Push(ev distclient.EvaluationEvent)
}

type noopPipeline struct{}

func (noopPipeline) Push(distclient.EvaluationEvent) {}
