package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pdf-translator/internal/logger"
)

// Launcher override keys. They may come from the process environment or from
// a .env file next to the executable or in the user data directory.
const (
	EnvPython        = "PDFTRANS_PYTHON"
	EnvMode          = "PDFTRANS_MODE"
	EnvResources     = "PDFTRANS_RESOURCES"
	EnvWorkerTimeout = "PDFTRANS_WORKER_TIMEOUT"
	EnvLogLevel      = "PDFTRANS_LOG_LEVEL"
	EnvProbe         = "PDFTRANS_PROBE_RUNTIME"
	EnvHFEndpoint    = "HF_ENDPOINT"
	EnvOnnxRuntime   = "ONNXRUNTIME_LIB"
)

// DefaultMirror is the model hub mirror handed to the worker when nothing
// else is configured.
const DefaultMirror = "https://hf-mirror.com"

// Launcher holds settings that affect how workers are started, as opposed to
// what they translate.
type Launcher struct {
	// PythonPath forces a specific interpreter.
	PythonPath string
	// Mode is "dev", "packaged" or empty for auto-detection.
	Mode string
	// ResourcesDir overrides the directory holding python_env, scripts and
	// models.
	ResourcesDir string
	// HFEndpoint is passed to workers as HF_ENDPOINT.
	HFEndpoint string
	// OnnxRuntimeLib is the onnxruntime shared library used to inspect the
	// layout model. Empty disables inspection.
	OnnxRuntimeLib string
	// WorkerTimeout bounds a conversion. Zero means no limit.
	WorkerTimeout time.Duration
	LogLevel      string
	// ProbeRuntime runs "<python> --version" before each session.
	ProbeRuntime bool
	// Sources lists the .env files that were read.
	Sources []string
}

var launcherKeys = []string{
	EnvPython, EnvMode, EnvResources, EnvWorkerTimeout, EnvLogLevel, EnvProbe, EnvHFEndpoint, EnvOnnxRuntime,
}

// LoadLauncher collects launcher overrides. Later sources win: the process
// environment, then each existing dirs[i]/.env in order. The process
// environment is never modified.
func LoadLauncher(dirs ...string) Launcher {
	values := make(map[string]string, len(launcherKeys))
	for _, k := range launcherKeys {
		if v, ok := os.LookupEnv(k); ok {
			values[k] = v
		}
	}

	var sources []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fileValues, err := godotenv.Read(path)
		if err != nil {
			logger.Warn("failed to read .env", logger.String("path", path), logger.Err(err))
			continue
		}
		for _, k := range launcherKeys {
			if v, ok := fileValues[k]; ok {
				values[k] = v
			}
		}
		sources = append(sources, path)
	}

	l := Launcher{
		PythonPath:     strings.TrimSpace(values[EnvPython]),
		Mode:           strings.ToLower(strings.TrimSpace(values[EnvMode])),
		ResourcesDir:   strings.TrimSpace(values[EnvResources]),
		HFEndpoint:     strings.TrimSpace(values[EnvHFEndpoint]),
		OnnxRuntimeLib: strings.TrimSpace(values[EnvOnnxRuntime]),
		LogLevel:       strings.TrimSpace(values[EnvLogLevel]),
		ProbeRuntime:   true,
		Sources:        sources,
	}
	if l.HFEndpoint == "" {
		l.HFEndpoint = DefaultMirror
	}
	if v := strings.TrimSpace(values[EnvWorkerTimeout]); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			l.WorkerTimeout = d
		} else if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			l.WorkerTimeout = time.Duration(secs) * time.Second
		} else {
			logger.Warn("ignoring invalid worker timeout", logger.String("value", v))
		}
	}
	if v := strings.TrimSpace(values[EnvProbe]); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			l.ProbeRuntime = b
		}
	}
	return l
}
