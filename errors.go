package decompress

import (
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
)

// Sentinel errors for different failure modes.
// They can be checked using errors.Is() for error handling and testing.
var (
	// ErrInputType indicates that the input is neither a file path nor a byte buffer.
	ErrInputType = errors.New("input must be a file path or a byte buffer")

	// ErrPathEscape indicates that an entry would be written outside the output directory.
	// This covers "../" segments, absolute paths, and symlinked ancestors or link targets
	// that resolve outside the resolved output root.
	ErrPathEscape = errors.New("path escapes output directory")

	// ErrSecurityViolation indicates that an archive exceeded a configured extraction limit.
	// This includes file count, per-file size, and total size limits.
	ErrSecurityViolation = errors.New("security constraint violated")

	// ErrArchiveCorrupted indicates that a format plugin recognised the archive but could not decode it.
	ErrArchiveCorrupted = errors.New("archive corrupted or invalid")

	// ErrLinkTarget indicates that a hard link or symlink target is missing or unusable.
	ErrLinkTarget = errors.New("invalid link target")
)

var (
	_ platformerrors.PlatformError = (*InputTypeError)(nil)
	_ platformerrors.PlatformError = (*PluginError)(nil)
	_ platformerrors.PlatformError = (*PathEscapeError)(nil)
)

// InputTypeError is returned by Decompress when the input has an unsupported type.
// It is raised before any I/O takes place.
type InputTypeError struct {
	// Type is the Go type of the rejected input, as printed by %T.
	Type string
}

func (e *InputTypeError) Error() string {
	return fmt.Sprintf("expected a file path or []byte input, got %s", e.Type)
}

// Unwrap returns ErrInputType so callers can use errors.Is.
func (e *InputTypeError) Unwrap() error { return ErrInputType }

// Code implements platformerrors.PlatformError.
func (e *InputTypeError) Code() platformerrors.ErrorCode { return platformerrors.CodeInvalidInput }

// Classification implements platformerrors.PlatformError.
func (e *InputTypeError) Classification() platformerrors.ErrorClassification {
	return platformerrors.ClassificationPermanent
}

// Message implements platformerrors.PlatformError.
func (e *InputTypeError) Message() string { return e.Error() }

// Context implements platformerrors.PlatformError.
func (e *InputTypeError) Context() map[string]interface{} {
	return map[string]interface{}{"type": e.Type}
}

// PluginError wraps the first failure reported by a format plugin.
// When a plugin fails, no records from any plugin are returned.
type PluginError struct {
	// Plugin is the name of the plugin that failed.
	Plugin string

	// Err is the error returned by the plugin.
	Err error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %s", e.Plugin, e.Err.Error())
}

// Unwrap returns the underlying plugin error.
func (e *PluginError) Unwrap() error { return e.Err }

// Code implements platformerrors.PlatformError.
// Corrupt archives and exceeded limits map to invalid input; a code carried by
// the wrapped error is preserved.
func (e *PluginError) Code() platformerrors.ErrorCode {
	var pe platformerrors.PlatformError
	if errors.As(e.Err, &pe) {
		return pe.Code()
	}

	if errors.Is(e.Err, ErrArchiveCorrupted) || errors.Is(e.Err, ErrSecurityViolation) {
		return platformerrors.CodeInvalidInput
	}

	return platformerrors.CodeExecutionFailed
}

// Classification implements platformerrors.PlatformError.
func (e *PluginError) Classification() platformerrors.ErrorClassification {
	return platformerrors.ClassificationPermanent
}

// Message implements platformerrors.PlatformError.
func (e *PluginError) Message() string { return e.Error() }

// Context implements platformerrors.PlatformError.
func (e *PluginError) Context() map[string]interface{} {
	return map[string]interface{}{"plugin": e.Plugin}
}

// PathEscapeError is returned when materialization refuses to touch a path.
// Its message always starts with "Refusing" and names the offending path.
type PathEscapeError struct {
	// Op describes the refused action (e.g., "mkdir", "write", "symlink", "link").
	Op string

	// Path is the archive path (or resolved path) that was refused.
	Path string

	// Reason is the human-readable refusal, e.g. "Refusing to write into a symlink".
	Reason string

	// Err is an optional underlying cause.
	Err error
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// Unwrap returns the underlying cause when present.
func (e *PathEscapeError) Unwrap() error { return e.Err }

// Is reports true for ErrPathEscape so every refusal matches the sentinel.
func (e *PathEscapeError) Is(target error) bool {
	return target == ErrPathEscape
}

// Code implements platformerrors.PlatformError.
func (e *PathEscapeError) Code() platformerrors.ErrorCode { return platformerrors.CodeForbidden }

// Classification implements platformerrors.PlatformError.
func (e *PathEscapeError) Classification() platformerrors.ErrorClassification {
	return platformerrors.ClassificationPermanent
}

// Message implements platformerrors.PlatformError.
func (e *PathEscapeError) Message() string { return e.Error() }

// Context implements platformerrors.PlatformError.
func (e *PathEscapeError) Context() map[string]interface{} {
	return map[string]interface{}{"op": e.Op, "path": e.Path}
}

// Refusal reasons used by the materializer.
const (
	reasonMkdirOutside = "Refusing to create a directory outside the output path"
	reasonWriteSymlink = "Refusing to write into a symlink"
	reasonWriteOutside = "Refusing to write outside output directory"
	reasonLinkOutside  = "Refusing to create a link pointing outside output directory"
)

func newPathEscapeError(op, path, reason string, err error) *PathEscapeError {
	return &PathEscapeError{Op: op, Path: path, Reason: reason, Err: err}
}

// IsSecurityError reports whether err is a path escape or an exceeded extraction limit.
func IsSecurityError(err error) bool {
	return errors.Is(err, ErrPathEscape) || errors.Is(err, ErrSecurityViolation)
}
