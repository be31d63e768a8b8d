package domain

import (
	"fmt"
	"hash/fnv"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// Severity grades a counted error.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ErrorRecord is an immutable entry in the rolling error journal.
type ErrorRecord struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Message     string      `json:"message"`
	StackDigest string      `json:"stack_digest"`
	ContextType ContextType `json:"context_type"`
	Operation   string      `json:"operation"`
	Severity    Severity    `json:"severity"`
}

// NewErrorRecord captures err at the point of handling. The stack digest
// is a short hash of the current call stack so repeated failures from the
// same site can be grouped without storing full traces.
func NewErrorRecord(err error, ctx ErrorContext, sev Severity) ErrorRecord {
	return ErrorRecord{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		Message:     err.Error(),
		StackDigest: stackDigest(),
		ContextType: ctx.Type.Normalize(),
		Operation:   ctx.Operation,
		Severity:    sev,
	}
}

func stackDigest() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	h := fnv.New32a()
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		_, _ = fmt.Fprintf(h, "%s:%d;", frame.Function, frame.Line)
		if !more {
			break
		}
	}
	return fmt.Sprintf("%08x", h.Sum32())
}
