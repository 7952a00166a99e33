// Package storage persists comparison documents. The gateway interface keeps
// the backend opaque to the pipeline; the local implementation writes one
// JSON file per document under a per-config directory.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/prismbench/prism/internal/model"
)

// Gateway stores and retrieves comparison documents, identified by
// (config id, file name).
type Gateway interface {
	// Save persists the document. The write is the run's single terminal
	// write; there are no concurrent writers to the same document.
	Save(ctx context.Context, configID, fileName string, doc *model.ComparisonDocument) error

	// GetByFileName loads a previously saved document. A missing document
	// returns (nil, nil).
	GetByFileName(ctx context.Context, configID, fileName string) (*model.ComparisonDocument, error)
}

// Local is a filesystem-backed gateway rooted at Dir.
type Local struct {
	Dir string
}

// NewLocal creates a gateway rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{Dir: dir}
}

// Save writes the document to <dir>/<configID>/<fileName>, creating the
// config directory as needed.
func (l *Local) Save(ctx context.Context, configID, fileName string, doc *model.ComparisonDocument) error {
	path, err := l.path(configID, fileName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := sonic.ConfigDefault.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// GetByFileName reads a document back, returning (nil, nil) when it does
// not exist.
func (l *Local) GetByFileName(ctx context.Context, configID, fileName string) (*model.ComparisonDocument, error) {
	path, err := l.path(configID, fileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc model.ComparisonDocument
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", fileName, err)
	}
	return &doc, nil
}

// path validates the identifiers and joins them under the root. Separators
// are rejected so a document can never escape its config directory.
func (l *Local) path(configID, fileName string) (string, error) {
	if configID == "" || fileName == "" {
		return "", fmt.Errorf("storage: config id and file name are required")
	}
	for _, part := range []string{configID, fileName} {
		if strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return "", fmt.Errorf("storage: invalid identifier %q", part)
		}
	}
	return filepath.Join(l.Dir, configID, fileName), nil
}
