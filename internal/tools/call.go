package tools

import (
	"encoding/json"
	"time"
)

// Call is a model's request to invoke a tool
type Call struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Status is the outcome of a tool call
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// FailureKind separates registry-level failures from handler failures
type FailureKind string

const (
	FailureUnknownTool      FailureKind = "UnknownTool"
	FailureInvalidArguments FailureKind = "InvalidArguments"
	FailureExecution        FailureKind = "ExecutionFailure"
)

// Failure explains a failed call. Reason is a stable code such as
// Unavailable, NotFound, InvalidInput, InsufficientData or Timeout.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Reason  string      `json:"reason"`
	Message string      `json:"message"`
}

// Result is the immutable outcome of one Call
type Result struct {
	CallID   string        `json:"call_id"`
	ToolName string        `json:"tool_name"`
	Status   Status        `json:"status"`
	Payload  any           `json:"payload,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the call succeeded
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Content renders the result as the JSON text fed back to the model
func (r Result) Content() string {
	var body any
	if r.OK() {
		body = r.Payload
	} else {
		body = map[string]any{"error": r.Failure}
	}

	data, err := json.Marshal(body)
	if err != nil {
		data, _ = json.Marshal(map[string]any{"error": Failure{
			Kind:    FailureExecution,
			Reason:  "Internal",
			Message: "result is not serializable: " + err.Error(),
		}})
	}
	return string(data)
}

func failed(call Call, kind FailureKind, reason, message string, took time.Duration) Result {
	return Result{
		CallID:   call.ID,
		ToolName: call.Name,
		Status:   StatusFailure,
		Failure:  &Failure{Kind: kind, Reason: reason, Message: message},
		Duration: took,
	}
}
