package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/masahif/supplycheck/internal/checker"
)

const (
	feedVersion = "2.0"
	issueLocale = "en_US"

	// DefaultChunkSize is the most messages one feed file may carry.
	DefaultChunkSize = 10000
)

// ErrNoSellerID is returned when documents are written without a seller id
var ErrNoSellerID = errors.New("feed seller_id is not configured")

// Writer writes feed documents to a directory.
type Writer struct {
	Dir       string
	Prefix    string
	SellerID  string
	ChunkSize int
}

// Write splits msgs into documents of at most ChunkSize messages and writes
// them as {Prefix}_{n}.json, n starting at 1. It returns the written paths.
func (w *Writer) Write(msgs []Message) ([]string, error) {
	if w.SellerID == "" {
		return nil, ErrNoSellerID
	}
	size := w.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create feed directory: %w", err)
	}

	var paths []string
	for n, chunk := range checker.Batch(msgs, size) {
		doc := Document{
			Header: Header{
				SellerID:    w.SellerID,
				Version:     feedVersion,
				IssueLocale: issueLocale,
			},
			Messages: chunk,
		}
		data, err := json.MarshalIndent(doc, "", "    ")
		if err != nil {
			return paths, fmt.Errorf("failed to encode feed chunk %d: %w", n+1, err)
		}

		path := filepath.Join(w.Dir, fmt.Sprintf("%s_%d.json", w.Prefix, n+1))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
