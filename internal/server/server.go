// internal/server/server.go
package server

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"loan-wizard/internal/common/config"
	"loan-wizard/internal/common/errors"
	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/session"
	"loan-wizard/internal/wizard"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const localSession = "session"

// Server is the console-facing HTTP API.
type Server struct {
	app         *fiber.App
	registry    *Registry
	sessions    session.Provider
	defaultRate float64
	logger      logger.Logger
}

// New wires the routes. The registry owns controller construction.
func New(cfg config.ServerConfig, wizardCfg config.WizardConfig, sessions session.Provider, registry *Registry, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{
		registry:    registry,
		sessions:    sessions,
		defaultRate: wizardCfg.DefaultAnnualRate,
		logger:      log.WithFields(map[string]interface{}{"component": "server"}),
	}

	fcfg := fiber.Config{
		AppName:               "loan-wizard",
		BodyLimit:             cfg.BodyLimitBytes,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	}
	if len(cfg.TrustedProxies) > 0 {
		fcfg.EnableTrustedProxyCheck = true
		fcfg.TrustedProxies = cfg.TrustedProxies
		fcfg.ProxyHeader = fiber.HeaderXForwardedFor
	}
	app := fiber.New(fcfg)

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Content-Length, X-Request-ID",
	}))
	app.Use(s.accessLog)

	wizards := app.Group("/api/wizards", s.requireSession)
	wizards.Post("/", s.create)
	wizards.Get("/:id", s.get)
	wizards.Delete("/:id", s.discard)
	wizards.Patch("/:id/fields", s.setFields)
	wizards.Put("/:id/documents/:slot", s.putDocument)
	wizards.Delete("/:id/documents/:slot", s.removeDocument)
	wizards.Post("/:id/next", s.next)
	wizards.Post("/:id/back", s.back)
	wizards.Post("/:id/steps/:step", s.goTo)
	wizards.Post("/:id/submit", s.submit)
	wizards.Get("/:id/affordability", s.affordability)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// requireSession resolves the bearer token into the tenant, customer and
// product the wizard submits under.
func (s *Server) requireSession(c *fiber.Ctx) error {
	token := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))

	sess, err := s.sessions.Resolve(c.UserContext(), token)
	switch {
	case err == nil:
	case stderrors.Is(err, session.ErrMissingToken), stderrors.Is(err, session.ErrSessionNotFound):
		return errors.NewSessionNotFoundError(err.Error())
	default:
		return errors.NewSessionLookupFailedError(err)
	}

	c.Locals(localSession, sess)
	return c.Next()
}

func sessionFrom(c *fiber.Ctx) wizard.SessionContext {
	sess, _ := c.Locals(localSession).(wizard.SessionContext)
	return sess
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			status = fe.Code
		} else {
			status = errors.HTTPStatus(errors.Normalize(err).Code)
		}
	}

	fields := map[string]interface{}{
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     status,
		"durationMs": time.Since(start).Milliseconds(),
		"requestId":  c.GetRespHeader(fiber.HeaderXRequestID),
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Debug("request", fields)
	}
	return err
}

// handleError renders errors that escaped a handler. Errors tied to a draft
// are rendered by the handlers themselves so the snapshot travels with them.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		code := errors.ErrorCode("INTERNAL_ERROR")
		if fe.Code < fiber.StatusInternalServerError {
			code = errors.ErrCodeInvalidRequest
		}
		return c.Status(fe.Code).JSON(ErrorResponse{Error: &errors.StandardError{
			Code:      code,
			Message:   fe.Message,
			Timestamp: time.Now().UTC(),
		}})
	}

	stdErr := errors.Normalize(err)
	return c.Status(errors.HTTPStatus(stdErr.Code)).JSON(ErrorResponse{Error: stdErr})
}
