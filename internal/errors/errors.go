// Package errors defines the council pipeline's error taxonomy and the
// classifier that maps failures to externally visible response codes.
package errors

import "fmt"

// Kind enumerates the error taxonomy a single invoker call or a whole stage
// can fail with.
type Kind string

const (
	KindTimeout    Kind = "TIMEOUT"
	KindTransport  Kind = "TRANSPORT"
	KindStatus     Kind = "STATUS"
	KindParse      Kind = "PARSE"
	KindValidation Kind = "VALIDATION"
	KindPipeline   Kind = "PIPELINE_ERROR"
	KindBadInput   Kind = "BAD_INPUT"
)

// InvokerError wraps a single invoker-call failure with its taxonomy kind.
type InvokerError struct {
	Kind       Kind
	Model      string
	StatusCode int
	Underlying error
}

func (e *InvokerError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s failed (%v)", e.Kind, e.Model, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed", e.Kind, e.Model)
}

func (e *InvokerError) Unwrap() error { return e.Underlying }

// NewTimeoutError builds a Timeout-kind InvokerError.
func NewTimeoutError(model string, underlying error) *InvokerError {
	return &InvokerError{Kind: KindTimeout, Model: model, Underlying: underlying}
}

// NewTransportError builds a Transport-kind InvokerError.
func NewTransportError(model string, underlying error) *InvokerError {
	return &InvokerError{Kind: KindTransport, Model: model, Underlying: underlying}
}

// NewStatusError builds a Status-kind InvokerError for a non-2xx response.
func NewStatusError(model string, statusCode int) *InvokerError {
	return &InvokerError{Kind: KindStatus, Model: model, StatusCode: statusCode}
}

// PipelineError is the composite error raised when every invoker of a
// required stage failed.
type PipelineError struct {
	Stage      string
	Message    string
	Kind       Kind
	Underlying error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error in %s: %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Underlying }

// NewPipelineError builds a PipelineError classified as KindPipeline, for
// failures with no single invoker cause to attribute (e.g. a stage with no
// invokers configured at all).
func NewPipelineError(stage, message string) *PipelineError {
	return &PipelineError{Stage: stage, Message: message, Kind: KindPipeline}
}

// NewPipelineErrorFromCause builds a PipelineError whose Kind is inherited
// from cause's InvokerError classification (Timeout/Transport/Status/...),
// so a whole-stage failure still maps to the same HTTP status its last
// underlying invoker failure would have (spec §7/§8). Falls back to
// KindPipeline when cause is nil or not an *InvokerError.
func NewPipelineErrorFromCause(stage, message string, cause error) *PipelineError {
	kind := KindPipeline
	var invokerErr *InvokerError
	if asInvokerError(cause, &invokerErr) {
		kind = invokerErr.Kind
	}
	return &PipelineError{Stage: stage, Message: message, Kind: kind, Underlying: cause}
}

// StatusCode classifies an error kind into the HTTP status code the host
// surface should report to its caller (§7 of the specification).
func StatusCode(kind Kind) int {
	switch kind {
	case KindTimeout:
		return 504
	case KindTransport, KindStatus:
		return 502
	case KindValidation:
		return 422
	case KindBadInput:
		return 400
	default:
		return 500
	}
}

// ClassifyPipelineError determines the taxonomy kind of a PipelineError by
// inspecting its wrapped cause, falling back to a generic pipeline failure.
func ClassifyPipelineError(err error) Kind {
	var invokerErr *InvokerError
	if asInvokerError(err, &invokerErr) {
		return invokerErr.Kind
	}
	var pipelineErr *PipelineError
	if asPipelineError(err, &pipelineErr) {
		if pipelineErr.Kind != "" {
			return pipelineErr.Kind
		}
	}
	return KindPipeline
}

func asInvokerError(err error, target **InvokerError) bool {
	for err != nil {
		if ie, ok := err.(*InvokerError); ok {
			*target = ie
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func asPipelineError(err error, target **PipelineError) bool {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok {
			*target = pe
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
