package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks pre-enqueue policy failures. Files carrying this
	// marker were never added to the queue.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks failures worth retrying: network faults, timeouts,
	// server 5xx responses.
	ErrTransient = errors.New("transient failure")
	// ErrRejected marks terminal server-side rejection of a payload. Not
	// retried automatically.
	ErrRejected = errors.New("upload rejected")
	// ErrCanceled marks user-initiated cancellation. Never surfaced as a
	// failure to error callbacks.
	ErrCanceled = errors.New("upload canceled")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether a failed upload may be resubmitted automatically.
// Unclassified errors default to transient so that a flaky network never
// strands a task in a state the retry controller refuses to touch.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsCanceled(err) || IsTerminal(err) {
		return false
	}
	return true
}

// IsTerminal reports whether a failure must not be retried automatically.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrRejected) || errors.Is(err, ErrValidation)
}

// IsCanceled reports whether a failure stems from user- or shutdown-initiated
// cancellation rather than a genuine upload fault.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// Message extracts the human-readable portion of a classified error, stripping
// the sentinel prefix so UI surfaces stay readable.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrValidation, ErrTransient, ErrRejected, ErrCanceled} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
