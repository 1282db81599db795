// Package archive stores run reports in cold storage (local disk or S3).
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/newthinker/orb/internal/core"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("archive object not found")

// Storage defines the interface for cold/archive storage backends. Keys are
// slash-separated and relative to the backend root.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns all keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string // "localfs" or "s3"
	Path    string // localfs root
	S3      S3Config
}

// Open builds the configured backend.
func Open(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "localfs":
		if cfg.Path == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive path is required for localfs"))
		}
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive backend %q", cfg.Backend))
	}
}

// ReportKey is where the report of a run started at started is filed:
// reports/YYYY/MM/DD/<runID>.json, dated in UTC.
func ReportKey(runID string, started time.Time) string {
	return path.Join("reports", started.UTC().Format("2006/01/02"), runID+".json")
}

// SaveJSON marshals v and stores it under key.
func SaveJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("put %s: %w", key, err))
	}
	return nil
}

// LoadJSON reads key and unmarshals it into v.
func LoadJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
