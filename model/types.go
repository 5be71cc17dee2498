package model

import (
	"errors"
	"strings"
	"time"
)

// AudioChunk represents a chunk of audio data.
type AudioChunk []byte

var (
	ErrEmptyVoiceText = errors.New("voice text is empty")
	ErrMissingUserID  = errors.New("user id is required")
)

// ConfidenceHigh is the only confidence value the backend distinguishes.
const ConfidenceHigh = "High"

// TranscriptSession is the capture adapter's view of one recognition session.
type TranscriptSession struct {
	Listening  bool   `json:"listening"`
	Transcript string `json:"transcript"`
}

// VoiceExpenseRequest is submitted to the backend parser.
type VoiceExpenseRequest struct {
	VoiceText string `json:"voiceText"`
	UserID    string `json:"userId"`
}

// NewVoiceExpenseRequest trims text and rejects blank text or a missing user.
func NewVoiceExpenseRequest(text, userID string) (VoiceExpenseRequest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return VoiceExpenseRequest{}, ErrEmptyVoiceText
	}
	if strings.TrimSpace(userID) == "" {
		return VoiceExpenseRequest{}, ErrMissingUserID
	}
	return VoiceExpenseRequest{VoiceText: text, UserID: userID}, nil
}

// ParsedExpense is the expense the backend extracted from the text.
type ParsedExpense struct {
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	CategoryName string  `json:"categoryName"`
	Date         string  `json:"date"`
	Description  string  `json:"description,omitempty"`
}

// VoiceExpenseResponse is returned by the process and test endpoints.
type VoiceExpenseResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Expense    *ParsedExpense `json:"expense,omitempty"`
	ParsedText string         `json:"parsedText,omitempty"`
	Confidence string         `json:"confidence,omitempty"`
}

// HighConfidence reports whether the backend marked the parse as certain.
func (r *VoiceExpenseResponse) HighConfidence() bool {
	return r != nil && r.Confidence == ConfidenceHigh
}

// RateLimitInfo is the user's daily quota snapshot.
type RateLimitInfo struct {
	Allowed         bool   `json:"allowed"`
	RemainingTokens int    `json:"remainingTokens"`
	TimeUntilReset  int64  `json:"timeUntilReset"` // seconds
	Message         string `json:"message"`
}

// ResetAt returns the moment the quota resets, counted from now.
func (r *RateLimitInfo) ResetAt(now time.Time) time.Time {
	return now.Add(time.Duration(r.TimeUntilReset) * time.Second)
}
