package store

import "github.com/mrsingh-rishi/voice-expense/model"

// VoiceExpenseState tracks the process/test request lifecycle.
type VoiceExpenseState struct {
	Loading  bool                        `json:"loading"`
	Error    string                      `json:"error,omitempty"`
	Response *model.VoiceExpenseResponse `json:"response,omitempty"`
}

// RateLimitState tracks the quota snapshot.
type RateLimitState struct {
	Loading bool                 `json:"loading"`
	Error   string               `json:"error,omitempty"`
	Info    *model.RateLimitInfo `json:"info,omitempty"`
}

// State is the whole store.
type State struct {
	VoiceExpense VoiceExpenseState `json:"voiceExpense"`
	RateLimit    RateLimitState    `json:"rateLimit"`
}

// Operation distinguishes the two voice expense endpoints.
type Operation string

const (
	OpProcess Operation = "process"
	OpTest    Operation = "test"
)

// Action is anything the reducers understand.
type Action interface {
	action()
}

type (
	// VoicePending marks a process or test request as in flight. Origin names the
	// submitter, see WithOrigin.
	VoicePending struct {
		Op     Operation
		Origin string
	}
	// VoiceFulfilled stores a backend response.
	VoiceFulfilled struct {
		Op       Operation
		Origin   string
		Response *model.VoiceExpenseResponse
	}
	// VoiceRejected stores a user facing error.
	VoiceRejected struct {
		Op     Operation
		Origin string
		Error  string
		// RateLimited is set when the backend refused the request for quota reasons.
		RateLimited bool
	}
	ClearResponse struct{}
	ClearError    struct{}

	RateLimitPending   struct{}
	RateLimitFulfilled struct{ Info *model.RateLimitInfo }
	RateLimitRejected  struct{ Error string }
	ClearRateLimit     struct{}
)

func (VoicePending) action()       {}
func (VoiceFulfilled) action()     {}
func (VoiceRejected) action()      {}
func (ClearResponse) action()      {}
func (ClearError) action()         {}
func (RateLimitPending) action()   {}
func (RateLimitFulfilled) action() {}
func (RateLimitRejected) action()  {}
func (ClearRateLimit) action()     {}

// ReduceVoiceExpense returns the next voice expense state.
func ReduceVoiceExpense(s VoiceExpenseState, a Action) VoiceExpenseState {
	switch a := a.(type) {
	case VoicePending:
		s.Loading = true
		s.Error = ""
	case VoiceFulfilled:
		s.Loading = false
		s.Response = a.Response
	case VoiceRejected:
		s.Loading = false
		s.Error = a.Error
	case ClearResponse:
		s.Response = nil
	case ClearError:
		s.Error = ""
	}
	return s
}

// ReduceRateLimit returns the next rate limit state.
func ReduceRateLimit(s RateLimitState, a Action) RateLimitState {
	switch a := a.(type) {
	case RateLimitPending:
		s.Loading = true
		s.Error = ""
	case RateLimitFulfilled:
		s.Loading = false
		s.Info = a.Info
	case RateLimitRejected:
		s.Loading = false
		s.Error = a.Error
	case ClearRateLimit:
		s.Info = nil
		s.Error = ""
	}
	return s
}

// Reduce applies a to every slice of the store.
func Reduce(s State, a Action) State {
	return State{
		VoiceExpense: ReduceVoiceExpense(s.VoiceExpense, a),
		RateLimit:    ReduceRateLimit(s.RateLimit, a),
	}
}
