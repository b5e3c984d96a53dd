// Package servecmder provides the serve command that runs the medibot API
// server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/medibot/api"
	"github.com/papercomputeco/medibot/pkg/config"
	"github.com/papercomputeco/medibot/pkg/logger"
	"github.com/papercomputeco/medibot/pkg/serverstate"
	"github.com/papercomputeco/medibot/pkg/services"
)

const shutdownTimeout = 10 * time.Second

type ServeCommander struct {
	flags config.FlagSet

	listen            string
	logFile           string
	sessionBackend    string
	sessionPath       string
	sessionSQLite     string
	retrievalProvider string
	retrievalTarget   string
	collection        string
	retrievalSQLite   string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	generationProv    string
	generationModel   string
	eventStreamProv   string
	vocabularyPath    string
	noMCP             bool

	debug     bool
	configDir string
	cfg       *config.Config
	logger    *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagLogFile,
	config.FlagSessionBackend,
	config.FlagSessionPath,
	config.FlagSessionSQLite,
	config.FlagRetrievalProvider,
	config.FlagRetrievalTarget,
	config.FlagCollection,
	config.FlagRetrievalSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagGenerationProv,
	config.FlagGenerationModel,
	config.FlagEventStreamProv,
	config.FlagVocabularyPath,
}

const serveLongDesc string = `Run the medibot API server.

The server answers questions at POST /api/chat, manages sessions under
/api/sessions, reports knowledge base status at /api/rag/status and exposes
the same operations to agents over MCP at /mcp.

Settings come from flags, MEDIBOT_* environment variables and config.toml,
in that order of precedence.

Examples:
  medibot serve
  medibot serve --listen :9000 --generation-provider ollama -m llama3.2
  medibot serve --session-backend sqlite --session-sqlite sessions.db`

const serveShortDesc string = "Run the medibot API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{flags: config.Registry}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlags)
			cmder.cfg = config.Unmarshal(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLogFile, &cmder.logFile)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSessionBackend, &cmder.sessionBackend)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSessionPath, &cmder.sessionPath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSessionSQLite, &cmder.sessionSQLite)
	config.AddStringFlag(cmd, cmder.flags, config.FlagRetrievalProvider, &cmder.retrievalProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagRetrievalTarget, &cmder.retrievalTarget)
	config.AddStringFlag(cmd, cmder.flags, config.FlagCollection, &cmder.collection)
	config.AddStringFlag(cmd, cmder.flags, config.FlagRetrievalSQLite, &cmder.retrievalSQLite)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, cmder.flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, cmder.flags, config.FlagGenerationProv, &cmder.generationProv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagGenerationModel, &cmder.generationModel)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventStreamProv, &cmder.eventStreamProv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagVocabularyPath, &cmder.vocabularyPath)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.cfg.Log.JSON),
		logger.WithJSON(c.cfg.Log.JSON),
		logger.WithWriter(os.Stderr),
		logger.WithFile(c.cfg.Log.File),
	)

	state, err := serverstate.NewManager(c.configDir)
	if err != nil {
		return err
	}
	lock, err := state.TryLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	svc, err := services.Build(ctx, c.cfg, services.Options{
		ConfigDir: c.configDir,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{
		ListenAddr:     c.cfg.Server.Listen,
		VectorDriver:   svc.VectorDriver,
		VectorProvider: c.cfg.Retrieval.Provider,
		Ingester:       svc.Ingester,
		NoMCP:          c.noMCP,
	}, svc.Pipeline, c.logger)
	if err != nil {
		_ = svc.Close(ctx)
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := state.SaveState(&serverstate.State{
		PID:            os.Getpid(),
		APIURL:         apiURL(c.cfg.Server.Listen),
		SessionBackend: c.cfg.Session.Backend,
		VectorStore:    c.cfg.Retrieval.Provider,
	}); err != nil {
		c.logger.Warn("could not record server state", "error", err)
	}
	defer func() { _ = state.ClearState() }()

	c.logger.Info("starting api server",
		"listen", c.cfg.Server.Listen,
		"session_backend", c.cfg.Session.Backend,
		"vector_store", c.cfg.Retrieval.Provider,
		"mcp", !c.noMCP,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case runErr = <-errChan:
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, server.Shutdown(), svc.Close(shutdownCtx))
}

// apiURL turns a listen address into a URL clients on this host can reach.
func apiURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
