package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
	"github.com/flowcanvas/flowcanvas/pkg/orchestrator"
	"github.com/flowcanvas/flowcanvas/pkg/storage"
)

// Runner runs one conversational turn. It is satisfied by
// *orchestrator.Orchestrator; tests supply scripted runners.
type Runner interface {
	RunTurn(ctx context.Context, transcript []llm.Message) <-chan orchestrator.TurnEvent
}

// Server is the flowcanvas API server.
type Server struct {
	config Config
	ledger storage.Ledger
	runner Runner
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The ledger and runner are injected so
// serve wiring and tests control their construction. A nil runner marks the
// deployment as missing its model credential; turn submission then fails
// with a configuration error rather than a caller error.
func NewServer(config Config, ledger storage.Ledger, runner Runner, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	app.Use(compress.New())

	s := &Server{
		config: config,
		ledger: ledger,
		runner: runner,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/api/chat", s.handleChat)
	app.Get("/api/usage", s.handleUsage)
	app.Post("/api/usage/record", s.handleUsageRecord)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}
