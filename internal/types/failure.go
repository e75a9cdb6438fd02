package types

import (
	"errors"
	"fmt"
)

// FailureKind 失败类型
type FailureKind string

const (
	MissingWorkingDirectory   FailureKind = "MissingWorkingDirectory"
	MissingExecutable         FailureKind = "MissingExecutable"
	MissingScript             FailureKind = "MissingScript"
	RuntimeVerificationFailed FailureKind = "RuntimeVerificationFailed"
	SpawnError                FailureKind = "SpawnError"
	PermissionDenied          FailureKind = "PermissionDenied"
	NotFound                  FailureKind = "NotFound"
	OperationNotPermitted     FailureKind = "OperationNotPermitted"
	ArchitectureMismatch      FailureKind = "ArchitectureMismatch"
	AlreadyRunning            FailureKind = "AlreadyRunning"
	ConfigLoadError           FailureKind = "ConfigLoadError"
	ConfigSaveError           FailureKind = "ConfigSaveError"
	RuntimeNotFound           FailureKind = "RuntimeNotFoundError"

	Cancelled    FailureKind = "Cancelled"
	TimedOut     FailureKind = "TimedOut"
	WorkerExited FailureKind = "WorkerExited"

	InvalidRequest    FailureKind = "InvalidRequest"
	ArtifactsMissing  FailureKind = "ArtifactsMissing"
	ServiceUnverified FailureKind = "ServiceUnverified"
)

// Category returns the short user-facing description of the kind.
func (k FailureKind) Category() string {
	switch k {
	case MissingWorkingDirectory:
		return "working directory does not exist"
	case MissingExecutable:
		return "runtime executable does not exist"
	case MissingScript:
		return "worker script does not exist"
	case RuntimeVerificationFailed:
		return "runtime could not be started"
	case SpawnError:
		return "process could not be started"
	case PermissionDenied:
		return "permission denied"
	case NotFound:
		return "file or command not found"
	case OperationNotPermitted:
		return "operation not permitted"
	case ArchitectureMismatch:
		return "runtime was built for a different CPU architecture"
	case AlreadyRunning:
		return "a worker is already running"
	case ConfigLoadError:
		return "configuration could not be read"
	case ConfigSaveError:
		return "configuration could not be written"
	case RuntimeNotFound:
		return "no usable runtime found"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed out"
	case WorkerExited:
		return "worker exited with an error"
	case InvalidRequest:
		return "invalid request"
	case ArtifactsMissing:
		return "worker produced no output files"
	case ServiceUnverified:
		return "translation service check failed"
	default:
		return "unknown failure"
	}
}

// Failure 失败描述，作为数据返回给界面
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	// Detail carries raw text such as stderr or the OS error.
	Detail string `json:"detail,omitempty"`
	Cause  error  `json:"-"`
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" {
		msg = f.Kind.Category()
	}
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", f.Kind, msg, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Kind, msg)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// NewFailure creates a failure of the given kind.
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// WrapFailure creates a failure whose detail is the text of cause.
func WrapFailure(kind FailureKind, message string, cause error) *Failure {
	f := &Failure{Kind: kind, Message: message, Cause: cause}
	if cause != nil {
		f.Detail = cause.Error()
	}
	return f
}

// FailureOf extracts a *Failure from err. Any other non-nil error becomes a
// failure of the fallback kind.
func FailureOf(err error, fallback FailureKind) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return WrapFailure(fallback, fallback.Category(), err)
}

// IsKind reports whether err is a failure of kind k.
func IsKind(err error, k FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == k
}
