// Package servecmder provides the serve command running the flowcanvas API
// server.
package servecmder

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowcanvas/flowcanvas/api"
	"github.com/flowcanvas/flowcanvas/pkg/config"
	"github.com/flowcanvas/flowcanvas/pkg/llm/openai"
	"github.com/flowcanvas/flowcanvas/pkg/logger"
	"github.com/flowcanvas/flowcanvas/pkg/orchestrator"
	"github.com/flowcanvas/flowcanvas/pkg/storage"
	"github.com/flowcanvas/flowcanvas/pkg/storage/inmemory"
	"github.com/flowcanvas/flowcanvas/pkg/storage/sqlite"
)

type ServeCommander struct {
	listen     string
	sqlitePath string
	debug      bool
	logger     *zap.Logger
}

const serveLongDesc string = `Run the flowcanvas server.

Serves turn submission with a streamed response plus the usage quota
endpoints. Configuration is resolved from flags, FLOWCANVAS_ environment
variables, and config.toml in the .flowcanvas/ directory, in that order.

The model credential is only ever read from FLOWCANVAS_MODEL_API_KEY.`

const serveShortDesc string = "Run the flowcanvas server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")

			return cmder.run(cmd, configDir)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for the server to listen on")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite usage ledger (default: in-memory)")

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command, configDir string) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	cfg := config.FromViper(v)

	// Flags beat environment and file values.
	if cmd.Flags().Changed("listen") {
		cfg.Server.Listen = c.listen
	}
	if cmd.Flags().Changed("sqlite") {
		cfg.Storage.SQLitePath = c.sqlitePath
	}

	ledger, err := c.newLedger(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runner, err := c.newRunner(cfg)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Config{ListenAddr: cfg.Server.Listen}, ledger, runner, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

// newRunner builds the turn orchestrator, or returns a nil runner when no
// model credential is configured. The server still starts so the usage
// endpoints work; turn submission reports the configuration error.
func (c *ServeCommander) newRunner(cfg *config.Config) (api.Runner, error) {
	client, err := openai.NewClient(openai.Config{
		BaseURL: cfg.Model.BaseURL,
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.Model.Name,
		Logger:  c.logger,
	})
	if err != nil {
		if errors.Is(err, openai.ErrMissingAPIKey) {
			c.logger.Warn("FLOWCANVAS_MODEL_API_KEY is not set, turn submission will be unavailable")
			return nil, nil
		}
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	return orchestrator.New(client, orchestrator.Config{
		Model:     cfg.Model.Name,
		System:    orchestrator.DefaultSystemPrompt,
		MaxRounds: cfg.Model.MaxRounds,
		Logger:    c.logger,
	}), nil
}

func (c *ServeCommander) newLedger(sqlitePath string) (storage.Ledger, error) {
	if sqlitePath != "" {
		ledger, err := sqlite.NewDriver(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite ledger: %w", err)
		}
		c.logger.Info("using SQLite usage ledger", zap.String("path", sqlitePath))
		return ledger, nil
	}

	c.logger.Info("using in-memory usage ledger")
	return inmemory.NewDriver(), nil
}
