// Package media downloads course images and registers them in the content store.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"eduadmin-sync/internal/content"
	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/httpx"
)

var sizeSuffix = regexp.MustCompile(`-\d+$`)

// BaseName derives the stable media title for an image URL: the file name
// without extension and without a trailing "-<digits>" size suffix.
// photo.jpg and photo-129.jpg both yield "photo".
func BaseName(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if base := sizeSuffix.ReplaceAllString(name, ""); base != "" {
		name = base
	}
	return name
}

type Importer struct {
	HTTP  *http.Client
	Dir   string
	Store content.Store
	Retry httpx.RetryConfig
}

func NewImporter(dir string, store content.Store) *Importer {
	return &Importer{
		HTTP:  &http.Client{Timeout: 60 * time.Second},
		Dir:   dir,
		Store: store,
		Retry: httpx.NoRetry(),
	}
}

// Import downloads imageURL into Dir and registers it with the given title.
// The media record remembers the source URL.
func (i *Importer) Import(ctx context.Context, imageURL, title string) (int64, error) {
	if strings.TrimSpace(imageURL) == "" {
		return 0, errors.New("media: empty image url")
	}

	_, body, err := httpx.Do(ctx, i.HTTP, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return nil, err
		}
		httpx.SetAcceptEncoding(r)
		return r, nil
	}, i.Retry)
	if err != nil {
		return 0, fmt.Errorf("media: download %s: %w", imageURL, err)
	}
	if len(body) == 0 {
		return 0, fmt.Errorf("media: download %s: empty body", imageURL)
	}

	if err := os.MkdirAll(i.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("media: create dir: %w", err)
	}
	ext := path.Ext(BaseFile(imageURL))
	local := filepath.Join(i.Dir, title+"-"+uuid.NewString()[:8]+ext)
	if err := os.WriteFile(local, body, 0o644); err != nil {
		return 0, fmt.Errorf("media: write %s: %w", local, err)
	}

	id, err := i.Store.CreateMedia(ctx, domain.Media{Title: title, SourceURL: imageURL, Path: local})
	if err != nil {
		os.Remove(local)
		return 0, err
	}
	return id, nil
}

// BaseFile is the last path element of the URL.
func BaseFile(imageURL string) string {
	if u, err := url.Parse(imageURL); err == nil {
		return path.Base(u.Path)
	}
	return path.Base(imageURL)
}
