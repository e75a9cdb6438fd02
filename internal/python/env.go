package python

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Environment returns the variables to set for a worker started with c.
// inherited is the environment the worker would otherwise receive; it is
// read to extend PATH and is not modified. mirror, when non-empty, becomes
// HF_ENDPOINT for model downloads.
func Environment(c Candidate, inherited []string, mirror string) map[string]string {
	return environment(c, inherited, mirror, runtime.GOOS)
}

func environment(c Candidate, inherited []string, mirror, goos string) map[string]string {
	env := map[string]string{
		"PYTHONIOENCODING": "utf-8",
		"PYTHONUTF8":       "1",
		"PYTHONUNBUFFERED": "1",
	}
	if mirror != "" {
		env["HF_ENDPOINT"] = mirror
	}

	if c.Bundled {
		env["PYTHONHOME"] = c.Root
		if site := SitePackages(c.Root, goos); site != "" {
			env["PYTHONPATH"] = site
		}
	}

	if c.Source != SourcePath {
		binDir := filepath.Dir(c.Path)
		sep := string(os.PathListSeparator)
		if goos == "windows" {
			sep = ";"
		}
		if current, ok := LookupEnv(inherited, "PATH", goos); ok && current != "" {
			env["PATH"] = binDir + sep + current
		} else {
			env["PATH"] = binDir
		}
	}
	return env
}

// SitePackages finds the site-packages directory of a bundled runtime. On
// unix the newest lib/python3.* wins.
func SitePackages(root, goos string) string {
	if goos == "windows" {
		p := filepath.Join(root, "Lib", "site-packages")
		if dirExists(p) {
			return p
		}
		return ""
	}

	matches, _ := filepath.Glob(filepath.Join(root, "lib", "python3.*", "site-packages"))
	if len(matches) == 0 {
		return ""
	}
	sort.Slice(matches, func(i, j int) bool {
		return minorVersion(matches[i]) > minorVersion(matches[j])
	})
	return matches[0]
}

// minorVersion extracts 12 from ".../lib/python3.12/site-packages".
func minorVersion(sitePath string) int {
	name := filepath.Base(filepath.Dir(sitePath))
	name = strings.TrimPrefix(name, "python3.")
	n := 0
	for _, r := range name {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// MergeEnv applies overrides on top of base ("KEY=value" entries). Keys
// are compared case-insensitively on Windows. The result keeps base order
// and appends new keys sorted.
func MergeEnv(base []string, overrides map[string]string) []string {
	return mergeEnv(base, overrides, runtime.GOOS)
}

func mergeEnv(base []string, overrides map[string]string, goos string) []string {
	norm := func(k string) string {
		if goos == "windows" {
			return strings.ToUpper(k)
		}
		return k
	}

	pending := make(map[string]string, len(overrides))
	keys := make(map[string]string, len(overrides))
	for k, v := range overrides {
		pending[norm(k)] = v
		keys[norm(k)] = k
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, ok := strings.Cut(kv, "=")
		if !ok {
			out = append(out, kv)
			continue
		}
		if v, hit := pending[norm(k)]; hit {
			out = append(out, k+"="+v)
			delete(pending, norm(k))
			continue
		}
		out = append(out, kv)
	}

	rest := make([]string, 0, len(pending))
	for nk := range pending {
		rest = append(rest, nk)
	}
	sort.Strings(rest)
	for _, nk := range rest {
		out = append(out, keys[nk]+"="+pending[nk])
	}
	return out
}

// LookupEnv finds key in an environment list.
func LookupEnv(env []string, key, goos string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if !ok {
			continue
		}
		if k == key || (goos == "windows" && strings.EqualFold(k, key)) {
			return v, true
		}
	}
	return "", false
}
