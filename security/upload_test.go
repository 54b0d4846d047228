package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomguard/roomguard/rgerrors"
)

func TestValidateUpload(t *testing.T) {
	v := NewFileValidator(FileValidatorConfig{})

	tests := []struct {
		name     string
		filename string
		size     int64
		wantCode rgerrors.Code
	}{
		{"valid image", "photo.png", 500_000, ""},
		{"valid document", "notes.pdf", 1 << 20, ""},
		{"valid archive", "bundle.zip", 20 << 20, ""},
		{"executable blocked", "malware.exe", 1024, rgerrors.CodeMaliciousFileDetected},
		{"script blocked", "run.sh", 10, rgerrors.CodeMaliciousFileDetected},
		{"blocked wins over case", "Setup.MSI", 10, rgerrors.CodeMaliciousFileDetected},
		{"unknown extension", "data.bin", 10, rgerrors.CodeFileSharingNotAllowed},
		{"no extension", "README", 10, rgerrors.CodeFileSharingNotAllowed},
		{"empty filename", "", 10, rgerrors.CodeValidationFailed},
		{"oversize document", "doc.pdf", 60 << 20, rgerrors.CodeFileTooLarge},
		{"oversize image", "big.jpg", 11 << 20, rgerrors.CodeFileTooLarge},
		{"oversize global", "movie.mkv", 101 << 20, rgerrors.CodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpload(tt.filename, tt.size, nil)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			e, ok := rgerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, e.Code)
		})
	}
}

func TestValidateUploadRejectsLongFilename(t *testing.T) {
	v := NewFileValidator(FileValidatorConfig{})

	err := v.ValidateUpload(strings.Repeat("a", 300)+".png", 10, nil)
	require.Error(t, err)
}

func TestValidateUploadScansContent(t *testing.T) {
	v := NewFileValidator(FileValidatorConfig{})

	err := v.ValidateUpload("photo.png", 100, []byte("<script>alert(1)</script>"))
	require.Error(t, err)
	e, ok := rgerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, rgerrors.CodeMaliciousFileDetected, e.Code)
	assert.Equal(t, "photo.png", e.Details["filename"])

	assert.NoError(t, v.ValidateUpload("photo.png", 100, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A}))
}

func TestScanContent(t *testing.T) {
	v := NewFileValidator(FileValidatorConfig{})

	tests := []struct {
		name    string
		content []byte
		ext     string
		wantErr bool
	}{
		{"clean bytes", []byte("plain old text"), ".txt", false},
		{"empty content", nil, ".txt", true},
		{"dos header", []byte("MZ\x90\x00rest-of-executable"), ".txt", true},
		{"script tag", []byte("before <SCRIPT> after"), ".txt", true},
		{"eval call", []byte("x = eval(payload)"), ".txt", true},
		{"cookie access", []byte("document.cookie"), ".txt", true},
		{"iframe", []byte("<iframe src=x>"), ".txt", true},
		{"event handler", []byte("onerror=steal()"), ".txt", true},
		{"html doc inside png", []byte("<!DOCTYPE html><p>x</p>"), ".png", true},
		{"js action inside pdf", []byte("%PDF-1.4 /JavaScript (app.alert(1))"), ".pdf", true},
		{"mz not at start is fine", []byte("AMZ text"), ".txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ScanContent(tt.content, tt.ext)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	// sha256("hello")
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Checksum([]byte("hello")))

	// Deterministic and content-sensitive.
	assert.Equal(t, Checksum([]byte("a")), Checksum([]byte("a")))
	assert.NotEqual(t, Checksum([]byte("a")), Checksum([]byte("b")))
}
