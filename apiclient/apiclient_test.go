package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-expense/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(nil, "not a url")
	assert.Error(t, err)
}

func TestProcessVoiceExpense_Success(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ProcessPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "u-1", r.Header.Get(HeaderUserID))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))

		var body model.VoiceExpenseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, model.VoiceExpenseRequest{VoiceText: "sandwich 300", UserID: "u-1"}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Expense added","expense":{"name":"sandwich","amount":300,"categoryName":"Food","date":"2026-10-18"},"confidence":"High"}`))
	})

	resp, err := client.ProcessVoiceExpense(context.Background(), "tok", model.VoiceExpenseRequest{VoiceText: "sandwich 300", UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Expense)
	assert.Equal(t, 300.0, resp.Expense.Amount)
	assert.Equal(t, "Food", resp.Expense.CategoryName)
	assert.True(t, resp.HighConfidence())
}

func TestProcessVoiceExpense_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"Daily limit of 20 reached"}`))
	})

	_, err := client.ProcessVoiceExpense(context.Background(), "tok", model.VoiceExpenseRequest{VoiceText: "x", UserID: "u"})
	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "Daily limit of 20 reached", rlErr.Message)
}

func TestTestVoiceExpense_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, TestPath, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"parser unavailable"}`))
	})

	_, err := client.TestVoiceExpense(context.Background(), "tok", model.VoiceExpenseRequest{VoiceText: "x", UserID: "u"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "parser unavailable", statusErr.Message)
}

func TestCheckRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, RateLimitPath, r.URL.Path)
		assert.Equal(t, "u-9", r.Header.Get(HeaderUserID))
		_, _ = w.Write([]byte(`{"allowed":false,"remainingTokens":0,"timeUntilReset":7200,"message":"Come back later"}`))
	})

	info, err := client.CheckRateLimit(context.Background(), "tok", "u-9")
	require.NoError(t, err)
	assert.Equal(t, &model.RateLimitInfo{Allowed: false, RemainingTokens: 0, TimeUntilReset: 7200, Message: "Come back later"}, info)
}

func TestBaseURLPathIsKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/backend"+RateLimitPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"allowed":true,"remainingTokens":5}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.Client(), srv.URL+"/backend/")
	require.NoError(t, err)
	info, err := client.CheckRateLimit(context.Background(), "tok", "u")
	require.NoError(t, err)
	assert.Equal(t, 5, info.RemainingTokens)
}

func TestInvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := client.CheckRateLimit(context.Background(), "tok", "u")
	assert.Error(t, err)
}

func TestExtractMessage(t *testing.T) {
	assert.Equal(t, "a", extractMessage([]byte(`{"message":"a"}`)))
	assert.Equal(t, "b", extractMessage([]byte(`{"error":"b"}`)))
	assert.Equal(t, "plain", extractMessage([]byte(" plain ")))
}
