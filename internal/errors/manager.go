// Package errors keeps a journal of failed worker sessions so the UI can
// show what went wrong after a restart and offer a retry.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pdf-translator/internal/types"
)

const journalFile = "errors.json"

// FailureRecord 失败记录
type FailureRecord struct {
	ID       string            `json:"id"`        // 输入文件路径，模型下载为 "model"
	Input    string            `json:"input"`     // 原始输入
	FileName string            `json:"file_name"` // 输入文件名
	Session  types.SessionKind `json:"session"`
	// Stage is the last stage the worker reported before failing.
	Stage      string            `json:"stage,omitempty"`
	Kind       types.FailureKind `json:"kind"`
	Message    string            `json:"message"`
	Detail     string            `json:"detail,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	RetryCount int               `json:"retry_count"` // 重试次数
	LastRetry  time.Time         `json:"last_retry,omitempty"`
}

// CanRetry reports whether retrying without user action makes sense.
func (r *FailureRecord) CanRetry() bool {
	switch r.Kind {
	case types.Cancelled, types.TimedOut, types.WorkerExited, types.ArtifactsMissing, types.AlreadyRunning:
		return true
	}
	return false
}

// ErrorManager 失败记录管理器
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	records map[string]*FailureRecord
}

// NewErrorManager opens the journal in baseDir, creating the directory.
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		records: make(map[string]*FailureRecord),
	}
	if err := em.load(); err != nil {
		return nil, err
	}
	return em, nil
}

// RecordFailure stores f for input. A repeated failure of the same input
// keeps its retry count.
func (em *ErrorManager) RecordFailure(input string, session types.SessionKind, stage string, f *types.Failure) error {
	if f == nil {
		return nil
	}
	id := recordID(input, session)

	em.mu.Lock()
	defer em.mu.Unlock()

	record := &FailureRecord{
		ID:        id,
		Input:     input,
		Session:   session,
		Stage:     stage,
		Kind:      f.Kind,
		Message:   f.Message,
		Detail:    f.Detail,
		Timestamp: time.Now(),
	}
	if input != "" {
		record.FileName = filepath.Base(input)
	}
	if existing, ok := em.records[id]; ok {
		record.RetryCount = existing.RetryCount
		record.LastRetry = existing.LastRetry
	}
	em.records[id] = record

	return em.save()
}

func recordID(input string, session types.SessionKind) string {
	if session == types.SessionDownload {
		return "model"
	}
	return filepath.Clean(input)
}

// IncrementRetry counts a retry of input.
func (em *ErrorManager) IncrementRetry(input string, session types.SessionKind) error {
	id := recordID(input, session)

	em.mu.Lock()
	defer em.mu.Unlock()

	record, ok := em.records[id]
	if !ok {
		return fmt.Errorf("failure record not found: %s", id)
	}
	record.RetryCount++
	record.LastRetry = time.Now()
	return em.save()
}

// Resolve drops the record of input after a successful run.
func (em *ErrorManager) Resolve(input string, session types.SessionKind) error {
	id := recordID(input, session)

	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.records[id]; !ok {
		return nil
	}
	delete(em.records, id)
	return em.save()
}

// List returns copies of all records, newest first.
func (em *ErrorManager) List() []FailureRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	out := make([]FailureRecord, 0, len(em.records))
	for _, r := range em.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Get returns a copy of the record for input.
func (em *ErrorManager) Get(input string, session types.SessionKind) (FailureRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	r, ok := em.records[recordID(input, session)]
	if !ok {
		return FailureRecord{}, false
	}
	return *r, true
}

// ClearAll removes every record.
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.records = make(map[string]*FailureRecord)
	return em.save()
}

func (em *ErrorManager) load() error {
	data, err := os.ReadFile(filepath.Join(em.baseDir, journalFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}
	for _, r := range records {
		em.records[r.ID] = r
	}
	return nil
}

func (em *ErrorManager) save() error {
	records := make([]*FailureRecord, 0, len(em.records))
	for _, r := range em.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}
	if err := os.WriteFile(filepath.Join(em.baseDir, journalFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}
	return nil
}
