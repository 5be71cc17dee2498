// Package output writes to websocket peers: synthesized audio to Twilio media streams
// and view frames to browser clients.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const EndOfUtterance = "__END_OF_UTTERANCE__"

// JSONConn is the part of a websocket connection outputs write to.
type JSONConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type TwilioOutput struct {
	ctx                 context.Context
	cancel              context.CancelFunc
	OutputDeviceChannel <-chan string
	streamSid           string
	ws                  JSONConn
	writeMu             *sync.Mutex
	logger              *slog.Logger
}

// NewTwilioOutput creates an output for one media stream. writeMu serializes writes with
// other users of ws.
func NewTwilioOutput(
	streamSid string,
	ws JSONConn,
	writeMu *sync.Mutex,
	outputDeviceChannel <-chan string,
	logger *slog.Logger,
) (*TwilioOutput, error) {
	if outputDeviceChannel == nil {
		return nil, fmt.Errorf("output device channel is required")
	}
	if streamSid == "" {
		return nil, fmt.Errorf("streamSid is empty")
	}
	if writeMu == nil {
		writeMu = &sync.Mutex{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TwilioOutput{
		ctx:                 ctx,
		cancel:              cancel,
		OutputDeviceChannel: outputDeviceChannel,
		streamSid:           streamSid,
		ws:                  ws,
		writeMu:             writeMu,
		logger:              logger,
	}, nil
}

func (o *TwilioOutput) Start() {
	go func() {
		for {
			select {
			case <-o.ctx.Done():
				return
			case payload, ok := <-o.OutputDeviceChannel:
				if !ok {
					return
				}
				// if it's our end-of-utterance sentinel, send a mark
				if payload == EndOfUtterance {
					o.sendMarkEvent()
				} else {
					o.sendMediaEvent(payload)
				}
			}
		}
	}()
}

func (o *TwilioOutput) write(msg interface{}) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	return o.ws.WriteJSON(msg)
}

func (o *TwilioOutput) sendMediaEvent(payload string) {
	mediaMsg := map[string]interface{}{
		"event":     "media",
		"streamSid": o.streamSid,
		"media": map[string]string{
			"payload": payload,
		},
	}
	if err := o.write(mediaMsg); err != nil {
		o.logger.Error("TwilioOutput media write error", "error", err)
	}
}

func (o *TwilioOutput) sendMarkEvent() {
	markMsg := map[string]interface{}{
		"event":     "mark",
		"streamSid": o.streamSid,
		"mark": map[string]string{
			"name": "audio chunks sent",
		},
	}
	if err := o.write(markMsg); err != nil {
		o.logger.Error("TwilioOutput mark write error", "error", err)
	}
}

// Stop ends the output loop. The connection is owned by the caller.
func (o *TwilioOutput) Stop() {
	o.cancel()
}
