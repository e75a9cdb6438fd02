package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestNewResultManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewResultManager(tempDir, 0)
	if err != nil {
		t.Fatalf("Failed to create ResultManager: %v", err)
	}
	if manager.GetBaseDir() != tempDir {
		t.Errorf("Expected base dir %s, got %s", tempDir, manager.GetBaseDir())
	}
	if manager.limit != DefaultLimit {
		t.Errorf("Expected default limit, got %d", manager.limit)
	}
	if len(manager.List()) != 0 {
		t.Error("new history should be empty")
	}
}

func TestAddAndReload(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "paper.pdf")
	writeFile(t, src, "%PDF-1.7 test")

	manager, err := NewResultManager(tempDir, 10)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := manager.Add(Record{InputPath: src, Service: "google", LangIn: "en", LangOut: "zh"})
	if err != nil {
		t.Fatalf("Failed to add record: %v", err)
	}
	expected, _ := CalculateFileMD5(src)
	if rec.ID != expected {
		t.Errorf("Expected ID %s, got %s", expected, rec.ID)
	}
	if rec.SourceFileName != "paper.pdf" || rec.TranslatedAt.IsZero() {
		t.Errorf("defaults not filled: %+v", rec)
	}

	reloaded, err := NewResultManager(tempDir, 10)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reloaded.FindByMD5(expected)
	if !ok || got.Service != "google" {
		t.Errorf("record not persisted: %+v", got)
	}

	existing, ok, err := reloaded.CheckExisting(src)
	if err != nil || !ok || existing.ID != expected {
		t.Errorf("CheckExisting = %+v, %v, %v", existing, ok, err)
	}
}

func TestAddReplacesSameSource(t *testing.T) {
	manager, _ := NewResultManager(t.TempDir(), 10)

	manager.Add(Record{ID: "abc", Service: "google", TranslatedAt: time.Now().Add(-time.Hour)})
	manager.Add(Record{ID: "abc", Service: "deepl"})

	list := manager.List()
	if len(list) != 1 || list[0].Service != "deepl" {
		t.Errorf("Expected one deepl record, got %+v", list)
	}
}

func TestListOrderAndLimit(t *testing.T) {
	manager, _ := NewResultManager(t.TempDir(), 2)
	now := time.Now()

	manager.Add(Record{ID: "old", TranslatedAt: now.Add(-2 * time.Hour)})
	manager.Add(Record{ID: "new", TranslatedAt: now})
	manager.Add(Record{ID: "mid", TranslatedAt: now.Add(-time.Hour)})

	list := manager.List()
	if len(list) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(list))
	}
	if list[0].ID != "new" || list[1].ID != "mid" {
		t.Errorf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
}

func TestRemoveAndPrune(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "paper_双语.pdf")
	writeFile(t, out, "%PDF")

	manager, _ := NewResultManager(dir, 10)
	manager.Add(Record{ID: "kept", DualPDF: out})
	manager.Add(Record{ID: "gone", MonoPDF: filepath.Join(dir, "missing.pdf")})
	manager.Add(Record{ID: "other"})

	if err := manager.Remove("other"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := manager.Remove("other"); err == nil {
		t.Error("expected error removing unknown entry")
	}

	removed, err := manager.Prune()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 pruned, got %d", removed)
	}
	list := manager.List()
	if len(list) != 1 || list[0].ID != "kept" {
		t.Errorf("unexpected records after prune: %+v", list)
	}
}

func TestCalculateFileMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, path, "hello")

	sum, err := CalculateFileMD5(path)
	if err != nil {
		t.Fatal(err)
	}
	if sum != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("unexpected md5 %s", sum)
	}
	if _, err := CalculateFileMD5(path + ".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}
