// Package pipeline wires every AASC component into the single
// per-call orchestration path described in spec §4.16.
//
// Grounded on the teacher's core/pkg/runtime/toolwrap.go, which wraps
// a tool call with a fixed sequence of pre-checks, the call itself,
// and post-processing, surfacing failures as a single tagged error
// type rather than a grab-bag of sentinel errors.
package pipeline

import "fmt"

// Error codes match spec §7's tagged-prefix taxonomy exactly.
const (
	CodeFilesystemBoundary   = "fs-boundary"
	CodeGateDenied           = "autonomy-gate denied"
	CodeApprovalDenied       = "autonomy-gate approval denied"
	CodeApprovalTimedOut     = "autonomy-gate approval timed out"
	CodeBeforeHookBlocked    = "before-hook blocked"
	CodeToolExecutionError   = "tool execution error"
)

// PipelineError is the single error type an Execute call returns for
// any pipeline-level rejection. Tool execution failures are reported
// through ToolResult.Error instead, per spec §7 ("wrapped as
// {status:"error", tool, error}"), not as a PipelineError.
type PipelineError struct {
	Code    string
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any, to errors.Is/As.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Cause: cause}
}
