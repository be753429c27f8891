package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is one source document before chunking.
type Document struct {
	Name string // base name, used as the source label on every chunk
	Text string
}

// Reader loads a single source document as plain text. Implementations
// for binary formats (PDF, DOCX) plug in here; the built-in FileReader
// covers plain text and markdown.
type Reader interface {
	Read(path string) (Document, error)
}

// FileReader reads UTF-8 text documents from the local filesystem.
type FileReader struct{}

var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Read loads the file at path. Directories, unsupported extensions, and
// empty files are rejected so Build can skip them with a warning.
func (FileReader) Read(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%s is a directory", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); !supportedExtensions[ext] {
		return Document{}, fmt.Errorf("unsupported document type %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return Document{}, errors.New("document is empty")
	}

	return Document{
		Name: filepath.Base(path),
		Text: string(data),
	}, nil
}
