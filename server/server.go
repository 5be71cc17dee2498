// Package server is the fiber gateway serving voice expense views to browsers and
// phone callers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/mrsingh-rishi/voice-expense/apiclient"
	"github.com/mrsingh-rishi/voice-expense/auth"
	"github.com/mrsingh-rishi/voice-expense/config"
	"github.com/mrsingh-rishi/voice-expense/model"
	"github.com/mrsingh-rishi/voice-expense/presenter"
	"github.com/mrsingh-rishi/voice-expense/speech"
	"github.com/mrsingh-rishi/voice-expense/store"
	"github.com/mrsingh-rishi/voice-expense/timer"
	"github.com/mrsingh-rishi/voice-expense/workers"
)

const localSession = "session"

// EngineFactory builds a recognition engine reading audio. A nil engine means speech
// capture is unsupported.
type EngineFactory func(audio <-chan model.AudioChunk) (speech.Engine, error)

// CallCreator places outbound phone calls.
type CallCreator interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

// Options wire the gateway to its collaborators.
type Options struct {
	Config *config.Config
	API    store.API
	// NewEngine serves browser sessions, NewPhoneEngine phone calls.
	NewEngine      EngineFactory
	NewPhoneEngine EngineFactory
	NewSpeaker     func(out chan<- string) (workers.Speaker, error)
	Calls          CallCreator
	Scheduler      timer.Scheduler
	Logger         *slog.Logger
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	api       store.API
	newEngine EngineFactory
	phone     EngineFactory
	speaker   func(out chan<- string) (workers.Speaker, error)
	calls     CallCreator
	scheduler timer.Scheduler
	logger    *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	sessions *sessions

	pendingMu sync.Mutex
	pending   map[string]string // call key -> user id
}

func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.API == nil {
		return nil, errors.New("backend API is required")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timer.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       opts.Config,
		api:       opts.API,
		newEngine: opts.NewEngine,
		phone:     opts.NewPhoneEngine,
		speaker:   opts.NewSpeaker,
		calls:     opts.Calls,
		scheduler: opts.Scheduler,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		pending:   map[string]string{},
	}
	s.sessions = &sessions{byUser: map[string]*Session{}, create: s.newSession}
	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.routes()
	return s, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("Fiber server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and tears every session down.
func (s *Server) Shutdown() error {
	s.cancel()
	s.sessions.closeAll()
	return s.app.Shutdown()
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api/voice-expense", s.identify)
	api.Get("/page", func(c *fiber.Ctx) error {
		return c.JSON(session(c).Page.View())
	})
	api.Get("/mic", func(c *fiber.Ctx) error {
		return c.JSON(session(c).Floating.View())
	})
	api.Post("/listen/start", s.command(func(c *fiber.Ctx) (Command, error) {
		return Command{Action: ActionStart, Variant: c.Query("variant")}, nil
	}))
	api.Post("/listen/stop", s.command(func(*fiber.Ctx) (Command, error) {
		return Command{Action: ActionStop}, nil
	}))
	api.Post("/text", s.command(func(c *fiber.Ctx) (Command, error) {
		var cmd Command
		if err := c.BodyParser(&cmd); err != nil {
			return cmd, fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
		}
		cmd.Action = ActionText
		return cmd, nil
	}))
	api.Post("/confirm", s.command(func(*fiber.Ctx) (Command, error) {
		return Command{Action: ActionConfirm, Variant: VariantPanel}, nil
	}))
	api.Post("/cancel", s.command(func(*fiber.Ctx) (Command, error) {
		return Command{Action: ActionCancel, Variant: VariantPanel}, nil
	}))
	api.Post("/rate-limit/check", s.command(func(*fiber.Ctx) (Command, error) {
		return Command{Action: ActionCheckRateLimit}, nil
	}))
	api.Delete("/rate-limit", s.command(func(*fiber.Ctx) (Command, error) {
		return Command{Action: ActionDismissRateLimit}, nil
	}))

	s.app.Use("/ws/voice-expense", s.identify, upgradeRequired)
	s.app.Get("/ws/voice-expense", websocket.New(s.handleUI))

	s.app.Post("/call", s.identify, s.handleCall)
	s.app.Get("/twiml", s.handleTwiML)
	s.app.Use("/stream", upgradeRequired)
	s.app.Get("/stream", websocket.New(s.handleStream))
}

func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// identify resolves the caller's user id and attaches their session. The bearer token
// comes from the Authorization header or the token query parameter; the user id from
// its claims, falling back to the X-User-ID header.
func (s *Server) identify(c *fiber.Ctx) error {
	token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		token = c.Query("token")
	}

	var userID string
	if token != "" {
		id, err := auth.UserID(token, s.cfg.API.JWTSecret)
		switch {
		case err == nil:
			userID = id
		case s.cfg.API.JWTSecret != "":
			s.logger.Warn("Rejected bearer token", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		default:
			s.logger.Debug("Bearer token carries no user id", "error", err)
		}
	}
	if userID == "" {
		userID = strings.TrimSpace(c.Get(apiclient.HeaderUserID))
	}
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	sess, err := s.sessions.get(userID, token)
	if err != nil {
		s.logger.Error("Failed to create session", "user", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create session"})
	}
	c.Locals(localSession, sess)
	return c.Next()
}

func session(c *fiber.Ctx) *Session {
	sess, _ := c.Locals(localSession).(*Session)
	return sess
}

func (s *Server) command(parse func(c *fiber.Ctx) (Command, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cmd, err := parse(c)
		if err != nil {
			return err
		}
		sess := session(c)
		result, err := sess.Execute(c.UserContext(), cmd)
		if err != nil {
			status, message := errorStatus(sess, err)
			return c.Status(status).JSON(fiber.Map{"error": message})
		}
		if result == nil || isNilResult(result) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(result)
	}
}

func isNilResult(v interface{}) bool {
	switch r := v.(type) {
	case *model.VoiceExpenseResponse:
		return r == nil
	case *model.RateLimitInfo:
		return r == nil
	}
	return false
}

// errorStatus maps a command error to an HTTP status and the message shown to the user.
// Backend failures report the message the store recorded.
func errorStatus(sess *Session, err error) (int, string) {
	var rlErr *apiclient.RateLimitError
	switch {
	case errors.Is(err, presenter.ErrHidden), errors.Is(err, speech.ErrUnsupported):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, model.ErrEmptyVoiceText), errors.Is(err, model.ErrMissingUserID),
		errors.Is(err, presenter.ErrNothingToConfirm), errors.Is(err, errUnknownVariant),
		errors.Is(err, errUnknownAction):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrNoToken):
		return fiber.StatusUnauthorized, store.MsgAuthRequired
	case errors.As(err, &rlErr):
		return fiber.StatusTooManyRequests, store.RateLimitPrefix + rlErr.Message
	}
	state := sess.Store.State()
	if state.VoiceExpense.Error != "" {
		return fiber.StatusBadGateway, state.VoiceExpense.Error
	}
	if state.RateLimit.Error != "" {
		return fiber.StatusBadGateway, state.RateLimit.Error
	}
	return fiber.StatusBadGateway, http.StatusText(http.StatusBadGateway)
}

func joinURL(base, path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(base, "/"), strings.TrimPrefix(path, "/"))
}
