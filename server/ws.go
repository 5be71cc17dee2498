package server

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/voice-expense/output"
)

// handleUI serves one browser tab: binary frames are microphone audio, text frames are
// commands, and view frames are pushed back whenever a presenter changes.
func (s *Server) handleUI(conn *websocket.Conn) {
	sess, ok := conn.Locals(localSession).(*Session)
	if !ok {
		conn.Close()
		return
	}
	defer conn.Close()

	out := output.NewViewOutput(conn, sess.logger)
	sess.Hub.Add(out)
	defer sess.Hub.Remove(out)
	sess.logger.Info("✅ UI websocket connected", "session", sess.ID)

	_ = out.Send(output.Frame{Type: output.FrameMic, View: sess.Floating.View()})
	_ = out.Send(output.Frame{Type: output.FramePage, View: sess.Page.View()})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Debug("UI websocket read error", "error", err)
			}
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			select {
			case sess.Audio <- data:
			default:
				sess.logger.Debug("Audio channel is full, dropping chunk")
			}
		case websocket.TextMessage:
			var cmd Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				_ = out.Send(output.Frame{Type: output.FrameError, Error: "invalid JSON"})
				continue
			}
			if _, err := sess.Execute(sess.ctx, cmd); err != nil {
				_, message := errorStatus(sess, err)
				_ = out.Send(output.Frame{Type: output.FrameError, Error: message})
			}
		}
	}
}
