// Package apiclient sends voice expense requests to the backend parsing service.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-expense/model"
)

const (
	ProcessPath   = "/api/user/voice-expense/process"
	TestPath      = "/api/user/voice-expense/test"
	RateLimitPath = "/api/user/voice-expense/rate-limit"

	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"
)

var errBaseURL = errors.New("error formatting API base URL")

// RateLimitError is returned when the backend answers 429.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded: " + e.Message
}

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected http status code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected http status code %d: %s", e.StatusCode, e.Message)
}

// messageBody is the error envelope the backend uses.
type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client manages the voice expense endpoints of the backend.
type Client struct {
	// the http client to use.
	HTTPClient *http.Client
	// the url used as the base for all requests.
	BaseURL *url.URL
}

// NewClient creates a new Client. A nil httpClient means http.DefaultClient.
func NewClient(httpClient *http.Client, baseURL string) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(errBaseURL, "%q", baseURL)
	}
	return &Client{HTTPClient: httpClient, BaseURL: u}, nil
}

// ProcessVoiceExpense asks the backend to parse and save an expense.
func (c *Client) ProcessVoiceExpense(ctx context.Context, token string, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error) {
	result := &model.VoiceExpenseResponse{}
	if err := c.do(ctx, http.MethodPost, ProcessPath, token, req.UserID, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// TestVoiceExpense asks the backend to parse text without saving it.
func (c *Client) TestVoiceExpense(ctx context.Context, token string, req model.VoiceExpenseRequest) (*model.VoiceExpenseResponse, error) {
	result := &model.VoiceExpenseResponse{}
	if err := c.do(ctx, http.MethodPost, TestPath, token, req.UserID, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// CheckRateLimit fetches the user's quota snapshot.
func (c *Client) CheckRateLimit(ctx context.Context, token string, userID string) (*model.RateLimitInfo, error) {
	result := &model.RateLimitInfo{}
	if err := c.do(ctx, http.MethodGet, RateLimitPath, token, userID, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path, token, userID string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "error marshaling request body")
		}
		reader = bytes.NewReader(data)
	}

	endpoint := *c.BaseURL
	endpoint.Path += path
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderUserID, userID)
	req.Header.Set(HeaderRequestID, uuid.NewString())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error sending request to %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Message: extractMessage(data)}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Message: extractMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "error unmarshaling response body")
	}
	return nil
}

// extractMessage pulls a human readable message from an error body, falling back to the raw text.
func extractMessage(data []byte) string {
	var body messageBody
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}
