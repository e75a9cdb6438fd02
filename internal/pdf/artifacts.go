package pdf

import (
	"os"
	"path/filepath"
	"strings"
)

// OutputBase is the path prefix the worker appends artifact suffixes to:
// the input's file name without extension, inside outputDir. An empty
// outputDir means next to the input.
func OutputBase(inputPath, outputDir string) string {
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	name := filepath.Base(inputPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(outputDir, stem)
}

// ArtifactPath returns where the worker writes the artifact of kind.
func ArtifactPath(outputBase string, kind ArtifactKind) string {
	if kind == ArtifactMono {
		return outputBase + MonoSuffix
	}
	return outputBase + DualSuffix
}

// FindArtifacts lists the artifacts that exist for outputBase, dual first.
// Empty files are ignored. When validate is set each file is checked with
// pdfcpu and the result recorded in Artifact.Valid.
func FindArtifacts(outputBase string, validate bool) []Artifact {
	var found []Artifact
	for _, kind := range []ArtifactKind{ArtifactDual, ArtifactMono} {
		path := ArtifactPath(outputBase, kind)
		st, err := os.Stat(path)
		if err != nil || st.IsDir() || st.Size() == 0 {
			continue
		}
		a := Artifact{Kind: kind, Path: path, FileSize: st.Size()}
		if validate {
			a.Valid = Validate(path) == nil
		}
		found = append(found, a)
	}
	return found
}
