// Package pdf inspects the PDFs around a conversion: the input the user
// picked and the bilingual and translated-only files the worker writes.
// It never modifies a document.
package pdf

// Info PDF 基本信息
type Info struct {
	Path      string `json:"path"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	PageCount int    `json:"page_count"`
	// HasTextLayer is false for scanned documents, which the worker cannot
	// translate.
	HasTextLayer bool `json:"has_text_layer"`
	// Valid reports whether the document passed structural validation.
	Valid bool `json:"valid"`
	// Problem is the validation message when Valid is false.
	Problem string `json:"problem,omitempty"`
}

// ArtifactKind 输出文件类型
type ArtifactKind string

const (
	// ArtifactDual holds original and translated text side by side.
	ArtifactDual ArtifactKind = "dual"
	// ArtifactMono holds the translated text only.
	ArtifactMono ArtifactKind = "mono"
)

// File name suffixes the worker appends to the output base.
const (
	DualSuffix = "_双语.pdf"
	MonoSuffix = "_译文.pdf"
)

// Artifact 工作进程生成的 PDF
type Artifact struct {
	Kind     ArtifactKind `json:"kind"`
	Path     string       `json:"path"`
	FileSize int64        `json:"file_size"`
	Valid    bool         `json:"valid"`
}

// ErrorCode PDF 错误代码
type ErrorCode string

const (
	ErrPDFNotFound ErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid  ErrorCode = "PDF_INVALID"
)

// Error PDF 处理错误
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error.
func NewError(code ErrorCode, message, path string, cause error) *Error {
	return &Error{Code: code, Message: message, Path: path, Cause: cause}
}
