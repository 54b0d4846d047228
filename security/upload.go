package security

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roomguard/roomguard/rgerrors"
)

// File size caps in bytes.
const (
	DefaultMaxFileSize     = 100 << 20 // 100MB global cap
	DefaultMaxImageSize    = 10 << 20  // 10MB
	DefaultMaxDocumentSize = 50 << 20  // 50MB
)

const maxFilenameLength = 255

// blockedExtensions are rejected regardless of the allow-list:
// executables, scripts, and installers.
var blockedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".scr": {}, ".pif": {},
	".msi": {}, ".msp": {}, ".dll": {}, ".jar": {}, ".vbs": {}, ".vbe": {},
	".js": {}, ".jse": {}, ".ws": {}, ".wsf": {}, ".wsh": {}, ".ps1": {},
	".psm1": {}, ".sh": {}, ".bash": {}, ".app": {}, ".deb": {}, ".rpm": {},
	".dmg": {}, ".apk": {},
}

type fileCategory string

const (
	categoryDocument   fileCategory = "document"
	categoryImage      fileCategory = "image"
	categoryArchive    fileCategory = "archive"
	categoryMedia      fileCategory = "media"
	categoryStructured fileCategory = "structured"
)

// allowedExtensions maps permitted extensions to their category, which
// decides the per-category size cap.
var allowedExtensions = map[string]fileCategory{
	".pdf": categoryDocument, ".doc": categoryDocument, ".docx": categoryDocument,
	".xls": categoryDocument, ".xlsx": categoryDocument, ".ppt": categoryDocument,
	".pptx": categoryDocument, ".txt": categoryDocument, ".md": categoryDocument,
	".rtf": categoryDocument, ".odt": categoryDocument, ".csv": categoryDocument,

	".jpg": categoryImage, ".jpeg": categoryImage, ".png": categoryImage,
	".gif": categoryImage, ".webp": categoryImage, ".bmp": categoryImage,
	".svg": categoryImage,

	".zip": categoryArchive, ".tar": categoryArchive, ".gz": categoryArchive,
	".7z": categoryArchive, ".rar": categoryArchive,

	".mp3": categoryMedia, ".mp4": categoryMedia, ".wav": categoryMedia,
	".ogg": categoryMedia, ".webm": categoryMedia, ".mov": categoryMedia,
	".avi": categoryMedia, ".mkv": categoryMedia,

	".json": categoryStructured, ".xml": categoryStructured,
	".yaml": categoryStructured, ".yml": categoryStructured,
}

// suspiciousPatterns are byte signatures of active content that have no
// business inside a shared file. Matched case-insensitively.
var suspiciousPatterns = [][]byte{
	[]byte("<script"),
	[]byte("javascript:"),
	[]byte("vbscript:"),
	[]byte("eval("),
	[]byte("document.cookie"),
	[]byte("<iframe"),
	[]byte("onerror="),
	[]byte("onload="),
	[]byte("data:text/html"),
}

// dosHeader is the MZ signature of Windows/DOS executables.
var dosHeader = []byte{0x4D, 0x5A}

// FileValidatorConfig configures a FileValidator.
type FileValidatorConfig struct {
	MaxFileSize     int64 `mapstructure:"max_file_size" yaml:"max_file_size"`
	MaxImageSize    int64 `mapstructure:"max_image_size" yaml:"max_image_size"`
	MaxDocumentSize int64 `mapstructure:"max_document_size" yaml:"max_document_size"`
}

// DefaultFileValidatorConfig returns the default size caps.
func DefaultFileValidatorConfig() FileValidatorConfig {
	return FileValidatorConfig{
		MaxFileSize:     DefaultMaxFileSize,
		MaxImageSize:    DefaultMaxImageSize,
		MaxDocumentSize: DefaultMaxDocumentSize,
	}
}

// FileValidator vets uploaded files by name, size, and content.
type FileValidator struct {
	config FileValidatorConfig
}

// NewFileValidator creates a file validator.
func NewFileValidator(config FileValidatorConfig) *FileValidator {
	defaults := DefaultFileValidatorConfig()
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = defaults.MaxFileSize
	}
	if config.MaxImageSize <= 0 {
		config.MaxImageSize = defaults.MaxImageSize
	}
	if config.MaxDocumentSize <= 0 {
		config.MaxDocumentSize = defaults.MaxDocumentSize
	}

	return &FileValidator{config: config}
}

// ValidateUpload vets an upload. A nil return means the file is
// acceptable; otherwise the error is an *rgerrors.Error describing the
// rejection. content may be nil when only metadata is available.
func (v *FileValidator) ValidateUpload(filename string, size int64, content []byte) error {
	if filename == "" {
		return rgerrors.Validation("filename", filename, "filename is required")
	}
	if len(filename) > maxFilenameLength {
		return rgerrors.Validation("filename", filename, "filename exceeds 255 characters")
	}

	ext := strings.ToLower(filepath.Ext(filename))

	// The blocklist wins even over allow-listed extensions.
	if _, blocked := blockedExtensions[ext]; blocked {
		return rgerrors.MaliciousFile(filename, fmt.Sprintf("extension %s is not permitted", ext))
	}

	category, allowed := allowedExtensions[ext]
	if !allowed {
		return rgerrors.New(rgerrors.CodeFileSharingNotAllowed,
			fmt.Sprintf("file type %s is not supported", ext)).WithDetails(map[string]any{
			"filename":  filename,
			"extension": ext,
		})
	}

	if size > v.config.MaxFileSize {
		return fileTooLarge(filename, size, v.config.MaxFileSize)
	}
	switch category {
	case categoryImage:
		if size > v.config.MaxImageSize {
			return fileTooLarge(filename, size, v.config.MaxImageSize)
		}
	case categoryDocument:
		if size > v.config.MaxDocumentSize {
			return fileTooLarge(filename, size, v.config.MaxDocumentSize)
		}
	}

	if content != nil {
		if err := v.ScanContent(content, ext); err != nil {
			if e, ok := rgerrors.As(err); ok {
				return e.WithDetails(map[string]any{"filename": filename})
			}
			return err
		}
	}

	return nil
}

func fileTooLarge(filename string, size, limit int64) *rgerrors.Error {
	return rgerrors.New(rgerrors.CodeFileTooLarge,
		fmt.Sprintf("file %s exceeds the size limit", filename)).WithDetails(map[string]any{
		"filename":  filename,
		"size":      size,
		"max_bytes": limit,
	})
}

// ScanContent runs signature heuristics over file content. This is
// pattern screening, not antivirus scanning.
func (v *FileValidator) ScanContent(content []byte, ext string) error {
	if len(content) == 0 {
		return rgerrors.New(rgerrors.CodeInvalidPayload, "file content is empty")
	}

	if bytes.HasPrefix(content, dosHeader) {
		return rgerrors.New(rgerrors.CodeMaliciousFileDetected, "executable header detected")
	}

	lower := bytes.ToLower(content)
	for _, pattern := range suspiciousPatterns {
		if bytes.Contains(lower, pattern) {
			return rgerrors.New(rgerrors.CodeMaliciousFileDetected,
				fmt.Sprintf("suspicious pattern %q detected", pattern))
		}
	}

	// Image and PDF containers must not carry script markers at all.
	ext = strings.ToLower(ext)
	if allowedExtensions[ext] == categoryImage || ext == ".pdf" {
		for _, marker := range [][]byte{[]byte("/javascript"), []byte("<!doctype html"), []byte("<html")} {
			if bytes.Contains(lower, marker) {
				return rgerrors.New(rgerrors.CodeMaliciousFileDetected,
					"embedded script content in media file")
			}
		}
	}

	return nil
}

// Checksum returns the SHA-256 hex digest of content, for dedup and
// integrity tracking. Independent of validation outcome.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
