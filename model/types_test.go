package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVoiceExpenseRequest(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		userID   string
		expected VoiceExpenseRequest
		err      error
	}{
		{
			name:     "trims text",
			text:     "  I spent 300 rs yesterday on sandwich \n",
			userID:   "u-1",
			expected: VoiceExpenseRequest{VoiceText: "I spent 300 rs yesterday on sandwich", UserID: "u-1"},
		},
		{name: "empty text", text: "", userID: "u-1", err: ErrEmptyVoiceText},
		{name: "whitespace text", text: " \t ", userID: "u-1", err: ErrEmptyVoiceText},
		{name: "missing user", text: "coffee 40", userID: "", err: ErrMissingUserID},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := NewVoiceExpenseRequest(tc.text, tc.userID)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, req)
		})
	}
}

func TestRateLimitInfo_ResetAt(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	info := &RateLimitInfo{TimeUntilReset: 3600}
	assert.Equal(t, now.Add(time.Hour), info.ResetAt(now))
}

func TestVoiceExpenseResponse_HighConfidence(t *testing.T) {
	var nilResp *VoiceExpenseResponse
	assert.False(t, nilResp.HighConfidence())
	assert.True(t, (&VoiceExpenseResponse{Confidence: "High"}).HighConfidence())
	assert.False(t, (&VoiceExpenseResponse{Confidence: "Medium"}).HighConfidence())
}
