// Package types defines the data shared between the runtime locator, the
// process supervisor, the output classifier and the Wails bridge.
package types

import (
	"strconv"
	"strings"
	"time"
)

// SessionKind 工作进程会话类型，每种类型同一时刻最多一个活动进程
type SessionKind string

const (
	SessionConversion SessionKind = "conversion"
	SessionDownload   SessionKind = "download"
)

// Valid reports whether k is a known session kind.
func (k SessionKind) Valid() bool {
	return k == SessionConversion || k == SessionDownload
}

// WorkerInvocation 结构化的工作进程调用描述
//
// Args are passed to the process as separate argv entries; nothing here is
// ever joined into a shell command line.
type WorkerInvocation struct {
	Session        SessionKind       `json:"session"`
	ExecutablePath string            `json:"executable_path"`
	ScriptPath     string            `json:"script_path"`
	Args           []string          `json:"args"`
	WorkingDir     string            `json:"working_dir"`
	Env            map[string]string `json:"env,omitempty"`
}

// Argv returns the arguments handed to the executable: the script followed
// by the caller's arguments.
func (w WorkerInvocation) Argv() []string {
	argv := make([]string, 0, len(w.Args)+1)
	if w.ScriptPath != "" {
		argv = append(argv, w.ScriptPath)
	}
	return append(argv, w.Args...)
}

// CommandLine renders the invocation for logs. It is never executed.
func (w WorkerInvocation) CommandLine() string {
	parts := make([]string, 0, len(w.Args)+2)
	parts = append(parts, quoteArg(w.ExecutablePath))
	for _, a := range w.Argv() {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return strconv.Quote(s)
	}
	return s
}

// ProcessResult 一次工作进程会话的最终结果
type ProcessResult struct {
	SessionID string        `json:"session_id"`
	Session   SessionKind   `json:"session"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Failure   *Failure      `json:"failure,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// OK reports a clean exit with no failure attached.
func (r ProcessResult) OK() bool {
	return r.Failure == nil && r.ExitCode == 0
}

// EventKind 输出行分类
type EventKind string

const (
	EventStage      EventKind = "stage"
	EventPercentage EventKind = "percentage"
	EventDiagnostic EventKind = "diagnostic"
	EventError      EventKind = "error"
)

// Stream 标识输出行来自哪个管道
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// ProgressEvent 由一行工作进程输出得到的分类结果
type ProgressEvent struct {
	Kind   EventKind `json:"kind"`
	Stream Stream    `json:"stream,omitempty"`
	// Text is the full original line.
	Text string `json:"text"`
	// Stage is the matched stage phrase for stage events.
	Stage string `json:"stage,omitempty"`
	// Value is the overall percentage (0-100) after band remapping.
	Value float64 `json:"value"`
	// Raw is the percentage exactly as printed by the worker.
	Raw      float64 `json:"raw"`
	Current  int64   `json:"current,omitempty"`
	Total    int64   `json:"total,omitempty"`
	HasUnits bool    `json:"has_units,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	Seq       uint64 `json:"seq"`
}

// FileFilter 文件选择对话框过滤器
type FileFilter struct {
	DisplayName string `json:"display_name"`
	Pattern     string `json:"pattern"`
}

// ModelState 版面模型状态
type ModelState string

const (
	ModelNotPresent ModelState = "not_present"
	ModelPresent    ModelState = "present"
)

// ModelStatus describes the layout-detection model on disk.
type ModelStatus struct {
	State ModelState `json:"state"`
	Dir   string     `json:"dir"`
	Files []string   `json:"files,omitempty"`
}
