package sync

import (
	"context"
	"errors"

	"eduadmin-sync/internal/content"
	"eduadmin-sync/internal/media"
)

// resolveImage returns the media id for imageURL, reusing any media whose
// title starts with the URL's stable base name before downloading.
func (e *Engine) resolveImage(ctx context.Context, imageURL string) (int64, error) {
	base := media.BaseName(imageURL)
	if base == "" {
		return 0, nil
	}
	id, err := e.store.FindMediaByTitlePrefix(ctx, base)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, content.ErrNotFound) {
		return 0, err
	}
	if e.images == nil {
		return 0, nil
	}
	return e.images.Import(ctx, imageURL, base)
}

// syncThumbnail points the course thumbnail at the resolved image.
func (e *Engine) syncThumbnail(ctx context.Context, courseID int64, imageURL string) (bool, error) {
	mediaID, err := e.resolveImage(ctx, imageURL)
	if err != nil || mediaID == 0 {
		return false, err
	}
	current, err := e.store.Thumbnail(ctx, courseID)
	if err != nil {
		return false, err
	}
	if current == mediaID {
		return false, nil
	}
	if err := e.store.SetThumbnail(ctx, courseID, mediaID); err != nil {
		return false, err
	}
	return true, nil
}
