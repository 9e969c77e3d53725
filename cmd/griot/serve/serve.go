// Package servecmder provides the serve command that runs the griot API and
// MCP server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidhonghikim/griot-sub000/api"
	"github.com/davidhonghikim/griot-sub000/cmd/griot/cmdutil"
	"github.com/davidhonghikim/griot-sub000/pkg/config"
	"github.com/davidhonghikim/griot-sub000/pkg/logger"
	"github.com/davidhonghikim/griot-sub000/pkg/pipeline"
)

type serveCommander struct {
	flags serveFlags

	noMCP    bool
	jsonLogs bool
	watch    bool
	logFile  string

	viper  *viper.Viper
	logger *slog.Logger
}

// serveFlags are the targets of the registry flags. Values are read back
// through viper so env vars and config.toml apply too.
type serveFlags struct {
	listen            string
	personasProvider  string
	personasPath      string
	vectorProvider    string
	vectorTarget      string
	vectorCollection  string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	embeddingCache    string
	backend           string
	backendTarget     string
	model             string
	eventsProvider    string
	eventsBrokers     string
	workers           uint
}

var stringFlags = []string{
	config.FlagAPIListen,
	config.FlagPersonasProvider,
	config.FlagPersonasPath,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorCollection,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingCache,
	config.FlagGenerationBackend,
	config.FlagGenerationTarget,
	config.FlagGenerationModel,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
}

var uintFlags = []string{
	config.FlagEmbeddingDims,
	config.FlagWorkers,
}

const serveLongDesc string = `Run the griot API server.

Loads personas, rebuilds the persona index from the vector store, then
serves the HTTP API, the MCP tools at /mcp and prometheus metrics at
/metrics until interrupted.

Every flag falls back to GRIOT_* environment variables, then to
.griot/config.toml, then to built-in defaults.

Examples:
  griot serve
  griot serve --backend vllm --backend-target http://gpu:8000/v1 --model meta-llama/Llama-3.1-8B-Instruct
  griot serve --vector-store-provider qdrant --vector-store-target localhost:6334
  griot serve --personas-provider files --personas-path ./personas --watch
  griot serve --log-file griot.log`

const serveShortDesc string = "Run the griot API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.InitViper(cmdutil.ConfigDir(cmd))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, stringFlags)
			config.BindRegisteredFlags(v, cmd, config.Flags, uintFlags)
			if err := v.BindPFlag("personas.watch", cmd.Flags().Lookup("watch")); err != nil {
				return fmt.Errorf("binding watch flag: %w", err)
			}
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug := cmdutil.Debug(cmd)
			cmder.logger = logger.New(
				logger.WithDebug(debug),
				logger.WithJSON(cmder.jsonLogs),
				logger.WithPretty(!cmder.jsonLogs),
				logger.WithSource(debug),
				logger.WithWriter(os.Stderr),
			)

			if cmder.logFile != "" {
				fileLogger, closer, err := logger.NewFile(cmder.logFile, logger.WithDebug(debug))
				if err != nil {
					return err
				}
				defer closer.Close()
				cmder.logger = logger.Multi(cmder.logger, fileLogger)
			}

			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagPersonasProvider, &f.personasProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagPersonasPath, &f.personasPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorCollection, &f.vectorCollection)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingCache, &f.embeddingCache)
	config.AddStringFlag(cmd, config.Flags, config.FlagGenerationBackend, &f.backend)
	config.AddStringFlag(cmd, config.Flags, config.FlagGenerationTarget, &f.backendTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagGenerationModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &f.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &f.eventsBrokers)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &f.workers)

	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the MCP tools endpoint")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write JSON logs instead of pretty output")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Revectorize personas when their files change (files provider only)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs with source locations to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := config.FromViper(c.viper)
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}

	c.logger.Info("starting griot",
		"listen", cfg.API.Listen,
		"personas_provider", cfg.Personas.Provider,
		"watch", cfg.Personas.Watch,
	)

	p, err := pipeline.New(ctx, pipeline.Options{
		Config: cfg,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			c.logger.Warn("closing pipeline", "error", err)
		}
	}()

	if err := p.Start(ctx); err != nil {
		return err
	}

	backend, endpoint := p.Backend()
	c.logger.Info("pipeline ready",
		"backend", backend,
		"endpoint", endpoint,
		"model", p.Model(),
		"vector_store", cfg.VectorStore.Provider,
	)

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		DisableMCP: c.noMCP,
	}, p, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
