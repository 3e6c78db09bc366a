// Package source discovers and parses knowledge source documents. The
// source tree has one subdirectory per category; each category holds
// PDF, JSON, and CSV files.
package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the parser family for a discovered file.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindJSON Kind = "json"
	KindCSV  Kind = "csv"
)

// File is one discovered source document.
type File struct {
	// Category is the name of the subdirectory the file lives in.
	Category string
	// Path is the absolute path to the file.
	Path string
	// Name is the file's base name, recorded as source_file on entries.
	Name string
	Kind Kind
}

// Scanner discovers source files under a root directory.
type Scanner struct {
	log *slog.Logger
}

// NewScanner creates a Scanner. A nil logger falls back to the default.
func NewScanner(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{log: log}
}

// Scan walks the immediate subdirectories of root in sorted order.
// Dot-directories and loose files at the root are skipped. Within each
// category, files are returned in sorted name order, PDFs first, then
// JSON, then CSV, so builds are reproducible.
func (s *Scanner) Scan(root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sources dir: %w", err)
	}

	dirs, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, fmt.Errorf("read sources dir %s: %w", absRoot, err)
	}

	var files []File
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		category := d.Name()
		if strings.HasPrefix(category, ".") {
			continue
		}

		catFiles, err := s.scanCategory(absRoot, category)
		if err != nil {
			// A single unreadable category should not abort discovery.
			s.log.Warn("skipping unreadable category",
				slog.String("category", category),
				slog.String("error", err.Error()))
			continue
		}
		files = append(files, catFiles...)
	}
	return files, nil
}

// kindOrder fixes the per-category processing order.
var kindOrder = []Kind{KindPDF, KindJSON, KindCSV}

func (s *Scanner) scanCategory(root, category string) ([]File, error) {
	dir := filepath.Join(root, category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	byKind := make(map[Kind][]File)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		kind, ok := kindForName(e.Name())
		if !ok {
			continue
		}
		byKind[kind] = append(byKind[kind], File{
			Category: category,
			Path:     filepath.Join(dir, e.Name()),
			Name:     e.Name(),
			Kind:     kind,
		})
	}

	var files []File
	for _, kind := range kindOrder {
		group := byKind[kind]
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
		files = append(files, group...)
	}
	return files, nil
}

func kindForName(name string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, true
	case ".json":
		return KindJSON, true
	case ".csv":
		return KindCSV, true
	default:
		return "", false
	}
}
