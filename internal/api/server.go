// Package api serves a small local status endpoint so other tooling can
// read the mirrored temperature without touching the tray.
package api

import (
	"time"

	"github.com/frostyard/glacierctl/internal/logger"
	"github.com/frostyard/glacierctl/internal/scheduler"
	"github.com/gofiber/fiber/v2"
)

// Source exposes the pipeline state the server reports.
type Source interface {
	Status() scheduler.Status
}

// Server is the local status API.
type Server struct {
	app    *fiber.App
	source Source
	addr   string
}

func NewServer(addr string, source Source) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		DisableStartupMessage: true,
		ServerHeader:          "glacierctl",
		AppName:               "glacierctl",
	})

	s := &Server{app: app, source: source, addr: addr}
	app.Get("/status", s.getStatus)
	app.Get("/healthz", s.getHealth)

	return s
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	return c.JSON(s.source.Status())
}

func (s *Server) getHealth(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

// Start serves until Shutdown. Meant to run in its own goroutine; a listen
// failure is logged, never fatal, the tray keeps working without the API.
func (s *Server) Start() {
	logger.Info().Str("addr", s.addr).Msg("Status API listening")
	if err := s.app.Listen(s.addr); err != nil {
		logger.Error().AnErr("error", err).Msg("Status API stopped")
	}
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown() {
	if err := s.app.Shutdown(); err != nil {
		logger.Debug().AnErr("error", err).Msg("Status API shutdown")
	}
}
