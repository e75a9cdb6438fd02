package errors

import (
	"os"
	"path/filepath"
	"testing"

	"pdf-translator/internal/types"
)

func TestErrorManager(t *testing.T) {
	dir := t.TempDir()
	em, err := NewErrorManager(dir)
	if err != nil {
		t.Fatalf("Failed to create error manager: %v", err)
	}

	input := filepath.Join("papers", "attention.pdf")
	failure := &types.Failure{Kind: types.WorkerExited, Message: "worker exited with code 1", Detail: "Error: boom"}

	if err := em.RecordFailure(input, types.SessionConversion, "正在翻译", failure); err != nil {
		t.Fatalf("Failed to record failure: %v", err)
	}

	record, ok := em.Get(input, types.SessionConversion)
	if !ok {
		t.Fatal("failure record not found")
	}
	if record.FileName != "attention.pdf" || record.Stage != "正在翻译" || record.Kind != types.WorkerExited {
		t.Errorf("unexpected record: %+v", record)
	}
	if !record.CanRetry() {
		t.Error("a worker exit should be retryable")
	}

	if err := em.IncrementRetry(input, types.SessionConversion); err != nil {
		t.Fatalf("Failed to increment retry: %v", err)
	}
	// recording again keeps the retry count
	if err := em.RecordFailure(input, types.SessionConversion, "", failure); err != nil {
		t.Fatal(err)
	}
	record, _ = em.Get(input, types.SessionConversion)
	if record.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", record.RetryCount)
	}

	// journal survives a reload
	reloaded, err := NewErrorManager(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(reloaded.List()) != 1 {
		t.Errorf("Expected 1 record after reload, got %d", len(reloaded.List()))
	}

	if err := em.Resolve(input, types.SessionConversion); err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if _, ok := em.Get(input, types.SessionConversion); ok {
		t.Error("record should be gone after Resolve")
	}
	if err := em.IncrementRetry(input, types.SessionConversion); err == nil {
		t.Error("expected error for unknown record")
	}
}

func TestErrorManager_DownloadFailuresShareOneRecord(t *testing.T) {
	em, err := NewErrorManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	em.RecordFailure("", types.SessionDownload, "", types.NewFailure(types.NotFound, "x"))
	em.RecordFailure("ignored", types.SessionDownload, "", types.NewFailure(types.TimedOut, "y"))

	list := em.List()
	if len(list) != 1 || list[0].ID != "model" || list[0].Kind != types.TimedOut {
		t.Errorf("unexpected records: %+v", list)
	}
	if err := em.RecordFailure("x", types.SessionConversion, "", nil); err != nil {
		t.Errorf("nil failure should be ignored, got %v", err)
	}
}

func TestErrorManager_ClearAllAndCorruptFile(t *testing.T) {
	dir := t.TempDir()
	em, _ := NewErrorManager(dir)
	em.RecordFailure("a.pdf", types.SessionConversion, "", types.NewFailure(types.MissingScript, "x"))

	if err := em.ClearAll(); err != nil {
		t.Fatal(err)
	}
	if len(em.List()) != 0 {
		t.Error("ClearAll left records behind")
	}

	if err := os.WriteFile(filepath.Join(dir, journalFile), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewErrorManager(dir); err == nil {
		t.Error("expected error for corrupt journal")
	}
}
