package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/mrsingh-rishi/voice-expense/call"
)

var errUnknownCall = errors.New("unknown or expired call key")

type callRequest struct {
	To string `json:"to"`
}

type callResponse struct {
	SID     string `json:"sid,omitempty"`
	Message string `json:"message"`
}

// handleCall kicks off an outbound call whose TwiML streams audio back to /stream.
func (s *Server) handleCall(c *fiber.Ctx) error {
	if s.calls == nil || s.phone == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "phone entry is not configured"})
	}
	var req callRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.To == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`to` field is required"})
	}

	key := uuid.NewString()
	s.pendingMu.Lock()
	s.pending[key] = session(c).UserID
	s.pendingMu.Unlock()

	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(s.cfg.Twilio.FromNumber)
	params.SetUrl(fmt.Sprintf("%s?%s=%s", joinURL(s.cfg.Server.BaseURL, "twiml"), call.ParamKey, key))
	params.SetMethod("GET")

	resp, err := s.calls.CreateCall(params)
	if err != nil {
		s.pendingMu.Lock()
		delete(s.pending, key)
		s.pendingMu.Unlock()
		s.logger.Error("Twilio error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create call"})
	}

	var sid string
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	return c.JSON(callResponse{SID: sid, Message: "call initiated"})
}

// handleTwiML instructs Twilio to stream the call to /stream, passing the call key along.
func (s *Server) handleTwiML(c *fiber.Ctx) error {
	key := c.Query(call.ParamKey)
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "call key missing"})
	}

	stream := &twiml.VoiceStream{
		Url: joinURL(s.cfg.Server.BaseWSURL, "stream"),
		InnerElements: []twiml.Element{
			&twiml.VoiceParameter{Name: call.ParamKey, Value: key},
		},
	}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	xml, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		s.logger.Error("Failed to render TwiML", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cannot handle call atm"})
	}

	c.Type("xml")
	return c.SendString(xml)
}

func (s *Server) handleStream(ws *websocket.Conn) {
	s.logger.Info("WebSocket /stream connected")
	c, err := call.NewCall(s.ctx, ws, call.Options{
		Resolve:    s.resolveCall,
		NewEngine:  s.phone,
		NewSpeaker: s.speaker,
		Language:   s.cfg.Speech.Language,
		Dismiss:    s.cfg.Feedback.Dismiss,
		Scheduler:  s.scheduler,
		Logger:     s.logger,
	})
	if err != nil {
		s.logger.Error("❌ Failed to create call", "error", err)
		ws.Close()
		return
	}
	if err := c.Run(); err != nil {
		s.logger.Error("❌ Call ended with error", "error", err)
	}
}

// resolveCall consumes the call key and returns the caller's session.
func (s *Server) resolveCall(_ context.Context, params map[string]string) (call.Target, error) {
	key := params[call.ParamKey]
	s.pendingMu.Lock()
	userID, ok := s.pending[key]
	delete(s.pending, key)
	s.pendingMu.Unlock()
	if !ok {
		return call.Target{}, errUnknownCall
	}

	sess, ok := s.sessions.lookup(userID)
	if !ok {
		return call.Target{}, errUnknownCall
	}
	return call.Target{UserID: sess.UserID, Store: sess.Store, Refresh: sess.Refresh}, nil
}
