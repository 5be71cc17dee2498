package output

import (
	"log/slog"
	"sync"
)

// Frame types pushed to browser clients.
const (
	FrameMic     = "mic"
	FramePage    = "page"
	FrameRefresh = "refresh"
	FrameRefetch = "refetch"
	FrameError   = "error"
)

// Frame is one message to a browser client.
type Frame struct {
	Type  string      `json:"type"`
	View  interface{} `json:"view,omitempty"`
	Seq   uint64      `json:"seq,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ViewOutput serializes frame writes to one browser websocket.
type ViewOutput struct {
	ws     JSONConn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewViewOutput(ws JSONConn, logger *slog.Logger) *ViewOutput {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewOutput{ws: ws, logger: logger}
}

// Send writes f; frames sent after Close are dropped.
func (o *ViewOutput) Send(f Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	if err := o.ws.WriteJSON(f); err != nil {
		o.logger.Debug("View frame write error", "type", f.Type, "error", err)
		return err
	}
	return nil
}

func (o *ViewOutput) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Hub fans frames out to every connected view.
type Hub struct {
	mu      sync.Mutex
	outputs map[*ViewOutput]struct{}
}

func NewHub() *Hub {
	return &Hub{outputs: map[*ViewOutput]struct{}{}}
}

func (h *Hub) Add(o *ViewOutput) {
	h.mu.Lock()
	h.outputs[o] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(o *ViewOutput) {
	h.mu.Lock()
	delete(h.outputs, o)
	h.mu.Unlock()
	o.Close()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.outputs)
}

// Broadcast sends f to every view; write failures are logged by the view.
func (h *Hub) Broadcast(f Frame) {
	h.mu.Lock()
	outputs := make([]*ViewOutput, 0, len(h.outputs))
	for o := range h.outputs {
		outputs = append(outputs, o)
	}
	h.mu.Unlock()
	for _, o := range outputs {
		_ = o.Send(f)
	}
}
