// Package state persists small JSON documents outside the content store:
// the cached access token, the run history and the last manual run time.
package state

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Well-known keys.
const (
	KeyToken      = "token"
	KeyHistory    = "import_logs"
	KeyLastManual = "last_manual_import"
)

var ErrNotFound = errors.New("state: key not found")

// Store is a key/value store of JSON-encoded values.
type Store interface {
	// Get decodes the value stored under key into out, or returns ErrNotFound.
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, v any) error
	Close() error
}

// Open builds a Store from a DSN:
//
//	file://data/state.json
//	memory://
//	badger:///var/lib/eduadmin-sync/state
//	redis://localhost:6379/0
func Open(dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("state: empty dsn")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("state: parse dsn: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		return NewFileStore(dsnPath(dsn))
	case "memory", "mem":
		return NewMemoryStore(), nil
	case "badger":
		return NewBadgerStore(dsnPath(dsn))
	case "redis", "rediss":
		return NewRedisStore(dsn)
	default:
		return nil, fmt.Errorf("state: unsupported scheme %q", parsed.Scheme)
	}
}

// dsnPath strips "scheme://" and keeps the remainder as a filesystem path,
// so both file://data/x.json and file:///abs/x.json work.
func dsnPath(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[i+3:]
	}
	return dsn
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
