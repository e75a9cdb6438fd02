package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"pdf-translator/internal/types"
)

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManager(dir)

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != types.DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("defaults were not written: %v", err)
	}
	if !strings.Contains(string(data), "\n    \"service\": \"google\"") {
		t.Errorf("expected 4-space indented JSON, got:\n%s", data)
	}
}

func TestLoad_MergesKeyByKey(t *testing.T) {
	dir := t.TempDir()
	saved := `{
    "service": "deepseek",
    "thread": 8,
    "deepseek": {"api_key": "sk-test"},
    "openai": {"model": "gpt-4o-mini"},
    "unknown_key": true
}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(saved), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewConfigManager(dir).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := types.DefaultConfig()
	if cfg.Service != "deepseek" || cfg.Thread != 8 {
		t.Errorf("persisted top-level values lost: %+v", cfg)
	}
	if cfg.DeepSeek.APIKey != "sk-test" {
		t.Errorf("persisted nested value lost: %+v", cfg.DeepSeek)
	}
	if cfg.DeepSeek.Model != def.DeepSeek.Model {
		t.Errorf("nested default not preserved: got %q, want %q", cfg.DeepSeek.Model, def.DeepSeek.Model)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" || cfg.OpenAI.BaseURL != def.OpenAI.BaseURL {
		t.Errorf("openai merge wrong: %+v", cfg.OpenAI)
	}
	if cfg.LangIn != def.LangIn || cfg.Google.URL != def.Google.URL {
		t.Errorf("absent keys should keep defaults: %+v", cfg)
	}
}

func TestLoad_WrongTypesAndNullsKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	saved := `{"thread": "many", "lang_out": null, "azure": "oops", "service": "azure"}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(saved), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewConfigManager(dir).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := types.DefaultConfig()
	if cfg.Thread != def.Thread {
		t.Errorf("thread = %d, want default %d", cfg.Thread, def.Thread)
	}
	if cfg.LangOut != def.LangOut {
		t.Errorf("lang_out = %q, want default", cfg.LangOut)
	}
	if cfg.Azure != def.Azure {
		t.Errorf("azure = %+v, want default", cfg.Azure)
	}
	if cfg.Service != "azure" {
		t.Errorf("service = %q, want azure", cfg.Service)
	}
}

func TestLoad_CorruptFileReturnsConfigLoadError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewConfigManager(dir).Load()
	if !types.IsKind(err, types.ConfigLoadError) {
		t.Fatalf("expected ConfigLoadError, got %v", err)
	}
	if cfg != types.DefaultConfig() {
		t.Errorf("defaults should accompany a load error")
	}
}

func TestSave_LoadRoundTripIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManager(dir)

	cfg := types.DefaultConfig()
	cfg.Service = "openai"
	cfg.OpenAI.APIKey = "sk-1"
	cfg.Proxy = "http://127.0.0.1:7890"
	if err := cm.Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first, err := os.ReadFile(cm.Path())
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := cm.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("loaded %+v, want %+v", loaded, cfg)
	}
	if err := cm.Save(loaded); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	second, err := os.ReadFile(cm.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("save(load()) changed the file:\n%s\n---\n%s", first, second)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(second, &raw); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
}

func TestSave_NormalizesValues(t *testing.T) {
	cm := NewConfigManager(t.TempDir())
	cfg := types.DefaultConfig()
	cfg.Thread = 0
	cfg.Service = " DeepL "
	cfg.LangOut = ""

	if err := cm.Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got := cm.Current()
	if got.Thread != 4 || got.Service != "deepl" || got.LangOut != "zh" {
		t.Errorf("unexpected normalized config: %+v", got)
	}
}

func TestSave_UnwritableDirectoryReturnsConfigSaveError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file-as-directory trick is unix specific")
	}
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err := NewConfigManager(filepath.Join(blocker, "data")).Save(types.DefaultConfig())
	if !types.IsKind(err, types.ConfigSaveError) {
		t.Fatalf("expected ConfigSaveError, got %v", err)
	}
}

func TestLoadLauncher(t *testing.T) {
	t.Setenv(EnvPython, "/from/env/python3")
	t.Setenv(EnvWorkerTimeout, "")
	t.Setenv(EnvHFEndpoint, "")

	dir := t.TempDir()
	env := "PDFTRANS_MODE=packaged\nPDFTRANS_WORKER_TIMEOUT=90\nONNXRUNTIME_LIB=/opt/ort/libonnxruntime.so\nPDFTRANS_PROBE_RUNTIME=false\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}

	l := LoadLauncher("", filepath.Join(dir, "missing"), dir)

	if l.PythonPath != "/from/env/python3" {
		t.Errorf("PythonPath = %q", l.PythonPath)
	}
	if l.Mode != "packaged" {
		t.Errorf("Mode = %q", l.Mode)
	}
	if l.WorkerTimeout != 90*time.Second {
		t.Errorf("WorkerTimeout = %v", l.WorkerTimeout)
	}
	if l.OnnxRuntimeLib != "/opt/ort/libonnxruntime.so" {
		t.Errorf("OnnxRuntimeLib = %q", l.OnnxRuntimeLib)
	}
	if l.ProbeRuntime {
		t.Error("ProbeRuntime should be disabled by .env")
	}
	if l.HFEndpoint != DefaultMirror {
		t.Errorf("HFEndpoint = %q, want default mirror", l.HFEndpoint)
	}
	if len(l.Sources) != 1 {
		t.Errorf("Sources = %v", l.Sources)
	}
	if os.Getenv(EnvMode) == "packaged" {
		t.Error("process environment must not be modified")
	}
}
