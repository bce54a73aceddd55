// Package extract reads the plain text of resume documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/resumatch/internal/models"
)

// Extractor extracts plain text from resume files. The zero value is ready to use.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions lists the resume formats Extract understands.
var SupportedExtensions = []string{".pdf", ".docx", ".txt", ".md"}

// Supported reports whether files named like name can be extracted.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extract reads the file at path and returns its text with whitespace runs collapsed.
// Every failure, including a missing file, wraps models.ErrExtractionFailed.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", models.ErrExtractionFailed, filepath.Base(path), err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	var text string
	var err error
	switch strings.ToLower(ext) {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractDOCX(content)
	case ".txt", ".md":
		text, err = extractPlain(content)
	default:
		err = fmt.Errorf("unsupported resume format %q", ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	return collapseWhitespace(text), nil
}

// collapseWhitespace joins lines, keeping a single space between words.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
