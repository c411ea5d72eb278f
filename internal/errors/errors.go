package errors

import (
	"errors"
	"fmt"
)

// Kind classifies build errors for handling decisions. The manager only
// ever branches on the kind, never on concrete error values.
type Kind string

const (
	// KindLayerOperation covers failures inside a layer's create or update
	// collaborator (subprocess exit, I/O failure, checksum mismatch). Always
	// fatal to the current build.
	KindLayerOperation Kind = "layer_operation"

	// KindMetadataCorrupt marks persisted layer metadata that exists but
	// cannot be deserialized. Treated as a cache miss, never fatal.
	KindMetadataCorrupt Kind = "metadata_corrupt"

	// KindInvalidName marks a rejected layer name.
	KindInvalidName Kind = "invalid_name"

	// KindDetect covers failures while deciding whether a project qualifies.
	KindDetect Kind = "detect"

	// KindConfig covers unreadable or invalid build configuration.
	KindConfig Kind = "config"

	// KindExport covers failures while assembling the output artifact.
	KindExport Kind = "export"
)

// BuildError is the error type carried across the build pipeline. It keeps
// the failing operation and layer so the driver can report where a build
// stopped without parsing message strings.
type BuildError struct {
	Kind      Kind
	Operation string
	Layer     string
	Message   string
	Cause     error
}

func (e *BuildError) Error() string {
	switch {
	case e.Layer != "" && e.Cause != nil:
		return fmt.Sprintf("[%s] layer %s: %s: %v", e.Kind, e.Layer, e.Message, e.Cause)
	case e.Layer != "":
		return fmt.Sprintf("[%s] layer %s: %s", e.Kind, e.Layer, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// NewLayerOperation wraps a failure from a layer's create/update collaborator.
func NewLayerOperation(layer, operation string, cause error) *BuildError {
	return &BuildError{
		Kind:      KindLayerOperation,
		Operation: operation,
		Layer:     layer,
		Message:   fmt.Sprintf("%s failed", operation),
		Cause:     cause,
	}
}

// NewMetadataCorrupt marks unreadable persisted metadata for a layer.
func NewMetadataCorrupt(layer string, cause error) *BuildError {
	return &BuildError{
		Kind:    KindMetadataCorrupt,
		Layer:   layer,
		Message: "persisted metadata is not readable",
		Cause:   cause,
	}
}

// NewInvalidName rejects a layer name.
func NewInvalidName(name, reason string) *BuildError {
	return &BuildError{
		Kind:    KindInvalidName,
		Layer:   name,
		Message: reason,
	}
}

// NewDetect wraps a project detection failure.
func NewDetect(message string, cause error) *BuildError {
	return &BuildError{Kind: KindDetect, Message: message, Cause: cause}
}

// NewConfig wraps a configuration failure.
func NewConfig(message string, cause error) *BuildError {
	return &BuildError{Kind: KindConfig, Message: message, Cause: cause}
}

// NewExport wraps an artifact export failure.
func NewExport(message string, cause error) *BuildError {
	return &BuildError{Kind: KindExport, Message: message, Cause: cause}
}

// KindOf returns the Kind of err when it is (or wraps) a BuildError, or ""
// otherwise.
func KindOf(err error) Kind {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsMetadataCorrupt reports whether err is a recoverable metadata read
// failure.
func IsMetadataCorrupt(err error) bool {
	return KindOf(err) == KindMetadataCorrupt
}
