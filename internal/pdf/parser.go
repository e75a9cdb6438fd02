package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"pdf-translator/internal/logger"
)

// textThreshold is the number of non-space characters in the first pages
// above which a document certainly has a text layer.
const textThreshold = 50

// Inspector reads PDF metadata.
type Inspector struct {
	// PagesToSample is how many leading pages are searched for text.
	PagesToSample int
}

// NewInspector returns an inspector sampling the first three pages.
func NewInspector() *Inspector {
	return &Inspector{PagesToSample: 3}
}

// Inspect validates the file at path and gathers page count and text-layer
// information. Only a missing or unreadable file is an error; a structurally
// broken document is reported through Info.Valid and Info.Problem.
func (i *Inspector) Inspect(path string) (Info, error) {
	info := Info{Path: path, FileName: filepath.Base(path)}
	if !IsPDFPath(path) {
		return info, NewError(ErrPDFInvalid, "not a .pdf file", path, nil)
	}

	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return info, NewError(ErrPDFNotFound, "file does not exist", path, err)
		}
		return info, NewError(ErrPDFInvalid, "cannot access file", path, err)
	}
	if st.IsDir() {
		return info, NewError(ErrPDFInvalid, "path is a directory", path, nil)
	}
	info.FileSize = st.Size()

	if err := Validate(path); err != nil {
		info.Problem = err.Error()
		logger.Warn("pdf failed validation", logger.String("path", path), logger.Err(err))
	} else {
		info.Valid = true
	}

	pages, err := i.pageCount(path)
	if err != nil {
		logger.Debug("page count unavailable", logger.String("path", path), logger.Err(err))
	}
	info.PageCount = pages

	hasText, err := i.HasTextLayer(path)
	if err != nil {
		logger.Debug("text layer check failed", logger.String("path", path), logger.Err(err))
	}
	info.HasTextLayer = hasText

	logger.Info("pdf inspected",
		logger.String("path", path),
		logger.Int("pages", info.PageCount),
		logger.Bool("text_layer", info.HasTextLayer),
		logger.Bool("valid", info.Valid))
	return info, nil
}

// Validate runs pdfcpu's structural validation.
func Validate(path string) error {
	if err := api.ValidateFile(path, nil); err != nil {
		return fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}
	return nil
}

// pageCount prefers ledongthuc/pdf, which opens some files pdfcpu rejects,
// and falls back to pdfcpu.
func (i *Inspector) pageCount(path string) (n int, err error) {
	n, err = withReader(path, func(r *pdf.Reader) (int, error) {
		return r.NumPage(), nil
	})
	if err == nil && n > 0 {
		return n, nil
	}

	ctx, cerr := api.ReadContextFile(path)
	if cerr != nil {
		if err == nil {
			err = cerr
		}
		return 0, err
	}
	return ctx.PageCount, nil
}

// HasTextLayer reports whether the leading pages contain extractable text.
func (i *Inspector) HasTextLayer(path string) (bool, error) {
	limit := i.PagesToSample
	if limit <= 0 {
		limit = 3
	}

	total, err := withReader(path, func(r *pdf.Reader) (int, error) {
		count := 0
		pages := r.NumPage()
		if pages > limit {
			pages = limit
		}
		for n := 1; n <= pages; n++ {
			page := r.Page(n)
			if page.V.IsNull() {
				continue
			}
			content, err := page.GetPlainText(nil)
			if err != nil {
				continue
			}
			count += countVisible(content)
			if count > textThreshold {
				break
			}
		}
		return count, nil
	})
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// withReader opens path and runs fn. The reader panics on some malformed
// files; the panic is returned as an error.
func withReader(path string, fn func(r *pdf.Reader) (int, error)) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			n, err = 0, NewError(ErrPDFInvalid, "unreadable pdf", path, fmt.Errorf("%v", p))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, NewError(ErrPDFInvalid, "cannot open pdf", path, err)
	}
	defer f.Close()
	return fn(r)
}

func countVisible(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// IsPDFPath reports whether path has a .pdf extension.
func IsPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
