// Package results keeps the history of finished conversions. Entries are
// keyed by the MD5 of the source PDF so converting the same file again
// replaces its entry.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const historyFile = "history.json"

// DefaultLimit is the number of entries kept when no limit is given.
const DefaultLimit = 50

// Record describes one successful conversion.
type Record struct {
	ID             string        `json:"id"` // MD5 of the source file
	SourceFileName string        `json:"source_file_name"`
	InputPath      string        `json:"input_path"`
	OutputDir      string        `json:"output_dir"`
	Service        string        `json:"service"`
	LangIn         string        `json:"lang_in"`
	LangOut        string        `json:"lang_out"`
	DualPDF        string        `json:"dual_pdf,omitempty"`
	MonoPDF        string        `json:"mono_pdf,omitempty"`
	PageCount      int           `json:"page_count,omitempty"`
	TranslatedAt   time.Time     `json:"translated_at"`
	Duration       time.Duration `json:"duration"`
}

// Exists reports whether at least one of the record's outputs is still on disk.
func (r *Record) Exists() bool {
	for _, p := range []string{r.DualPDF, r.MonoPDF} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// ResultManager manages the conversion history stored in the user directory.
type ResultManager struct {
	baseDir string
	limit   int

	mu      sync.Mutex
	records []*Record
}

// NewResultManager opens the history in baseDir. Limit caps the number of
// entries; values below 1 use DefaultLimit.
func NewResultManager(baseDir string, limit int) (*ResultManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, ".PDFTranslator")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	m := &ResultManager{baseDir: baseDir, limit: limit}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetBaseDir returns the directory holding the history file.
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

// Add stores rec, replacing an older entry for the same source. The ID is
// computed from InputPath when empty.
func (m *ResultManager) Add(rec Record) (Record, error) {
	if rec.ID == "" {
		sum, err := CalculateFileMD5(rec.InputPath)
		if err != nil {
			return rec, fmt.Errorf("hash source: %w", err)
		}
		rec.ID = sum
	}
	if rec.SourceFileName == "" {
		rec.SourceFileName = filepath.Base(rec.InputPath)
	}
	if rec.TranslatedAt.IsZero() {
		rec.TranslatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, r := range m.records {
		if r.ID != rec.ID {
			kept = append(kept, r)
		}
	}
	stored := rec
	m.records = append(kept, &stored)
	m.sortLocked()
	if len(m.records) > m.limit {
		m.records = m.records[:m.limit]
	}
	return rec, m.save()
}

// List returns the history, newest first.
func (m *ResultManager) List() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = *r
	}
	return out
}

// FindByMD5 returns the entry for a source hash.
func (m *ResultManager) FindByMD5(md5Hash string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ID == md5Hash {
			return *r, true
		}
	}
	return Record{}, false
}

// CheckExisting returns the previous conversion of the file at path, if any.
func (m *ResultManager) CheckExisting(path string) (Record, bool, error) {
	sum, err := CalculateFileMD5(path)
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := m.FindByMD5(sum)
	return rec, ok, nil
}

// Remove deletes the entry with the given ID. Output files are left alone.
func (m *ResultManager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return m.save()
		}
	}
	return fmt.Errorf("history entry not found: %s", id)
}

// Prune drops entries whose outputs no longer exist and returns how many
// were removed.
func (m *ResultManager) Prune() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, r := range m.records {
		if r.Exists() {
			kept = append(kept, r)
		}
	}
	removed := len(m.records) - len(kept)
	m.records = kept
	if removed == 0 {
		return 0, nil
	}
	return removed, m.save()
}

func (m *ResultManager) sortLocked() {
	sort.SliceStable(m.records, func(i, j int) bool {
		return m.records[i].TranslatedAt.After(m.records[j].TranslatedAt)
	})
}

func (m *ResultManager) load() error {
	data, err := os.ReadFile(filepath.Join(m.baseDir, historyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}
	m.records = records
	m.sortLocked()
	return nil
}

func (m *ResultManager) save() error {
	data, err := json.MarshalIndent(m.records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.baseDir, historyFile), data, 0644)
}

// CalculateFileMD5 calculates the MD5 hash of a file
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
