// Package parser turns a local document into ordered paragraph text.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Format is a supported document format.
type Format string

// Supported formats.
const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

// DefaultMaxBytes caps the document size read into memory.
const DefaultMaxBytes int64 = 64 << 20

// Reader reads documents by extension. The zero value is usable.
type Reader struct {
	MaxBytes int64
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return FormatDOCX, nil
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".md", ".markdown", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", domain.ErrDocumentUnreadable, filepath.Ext(path))
	}
}

// Read returns the paragraphs of the document at path, in document order.
// Paragraphs are returned as found; trimming and empty-dropping belong to
// the chunker. Every failure wraps domain.ErrDocumentUnreadable.
func (r Reader) Read(path string) ([]string, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDocumentUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrDocumentUnreadable, path)
	}
	limit := r.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", domain.ErrDocumentUnreadable, path, info.Size(), limit)
	}

	var paras []string
	switch format {
	case FormatDOCX:
		paras, err = readDOCX(path)
	case FormatPDF:
		paras, err = readPDF(path)
	default:
		paras, err = readText(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrDocumentUnreadable, filepath.Base(path), err)
	}
	return paras, nil
}

// splitBlocks splits text into blank-line separated blocks, joining the lines
// of a block with single spaces.
func splitBlocks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		out   []string
		lines []string
	)
	flush := func() {
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, " "))
			lines = lines[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return out
}

func readText(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return splitBlocks(string(b)), nil
}
