// Package proxysource collects proxy descriptors (login:password@host:port)
// from the configuration, list files and the proxy vendor API.
package proxysource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/masahif/supplycheck/internal/config"
)

// ErrNoDescriptors is returned by Collect when no source yields a descriptor
var ErrNoDescriptors = errors.New("no proxy descriptors collected")

// Source yields proxy descriptors.
type Source interface {
	Name() string
	Descriptors(ctx context.Context) ([]string, error)
}

// Static is a fixed descriptor list, usually from the config file.
type Static []string

func (s Static) Name() string { return "config" }

func (s Static) Descriptors(context.Context) ([]string, error) {
	return s, nil
}

// File reads descriptors from a list file, one per line.
type File string

func (f File) Name() string { return "file:" + string(f) }

func (f File) Descriptors(context.Context) ([]string, error) {
	return config.ReadList(string(f))
}

// Func adapts a function to a Source.
type Func struct {
	Label string
	Fetch func(ctx context.Context) ([]string, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) Descriptors(ctx context.Context) ([]string, error) {
	return f.Fetch(ctx)
}

// Collect queries the sources in order and returns the union of their
// descriptors, first occurrence wins. Any source error aborts collection.
func Collect(ctx context.Context, sources ...Source) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, src := range sources {
		descriptors, err := src.Descriptors(ctx)
		if err != nil {
			return nil, fmt.Errorf("proxy source %s: %w", src.Name(), err)
		}
		added := 0
		for _, d := range descriptors {
			if d == "" || seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
			added++
		}
		slog.Debug("Proxy source loaded", "source", src.Name(), "descriptors", added)
	}
	if len(out) == 0 {
		return nil, ErrNoDescriptors
	}
	return out, nil
}
