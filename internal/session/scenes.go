package session

import (
	"context"
	"io"

	"github.com/tablekeep/vtt/internal/fog"
	"github.com/tablekeep/vtt/pkg/core"
)

// CreateScene adds a scene and makes it current.
func (s *Session) CreateScene(name string, width, height int) (core.Scene, bool) {
	if !s.allow("create_scene") {
		return core.Scene{}, false
	}
	sc := s.store.CreateScene(name, width, height)
	s.changed(true)
	return sc, true
}

// DuplicateScene copies a scene under fresh ids.
func (s *Session) DuplicateScene(id string) (core.Scene, bool) {
	if !s.allow("duplicate_scene") {
		return core.Scene{}, false
	}
	sc, ok := s.store.DuplicateScene(id)
	return sc, s.changed(ok)
}

// RenameScene sets a scene's name.
func (s *Session) RenameScene(id, name string) bool {
	return s.allow("rename_scene") && s.changed(s.store.RenameScene(id, name))
}

// DeleteScene removes a scene.
func (s *Session) DeleteScene(id string) bool {
	if !s.allow("delete_scene") {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.store.DeleteScene(id)
	if ok {
		s.reconcile()
	}
	return s.changed(ok)
}

// SwitchScene moves every viewer to another scene.
func (s *Session) SwitchScene(id string) bool {
	if !s.allow("switch_scene") {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.store.SwitchScene(id)
	if ok {
		s.view.Select("")
		s.view.CancelDraft()
		s.view.Measure.Reset()
	}
	return s.changed(ok)
}

// ResizeScene changes a scene's cell dimensions.
func (s *Session) ResizeScene(id string, width, height int) bool {
	return s.allow("resize_scene") && s.changed(s.store.ResizeScene(id, width, height))
}

// SetGridSize sets a scene's cell size in pixels.
func (s *Session) SetGridSize(id string, size int) bool {
	return s.allow("set_grid_size") && s.changed(s.store.SetGridSize(id, size))
}

// SetBackground sets or clears the background url.
func (s *Session) SetBackground(id, url string) bool {
	return s.allow("set_background") && s.changed(s.store.SetBackground(id, url))
}

// SetBackgroundTransform sets the background scale and offset.
func (s *Session) SetBackgroundTransform(id string, scale, offsetX, offsetY float64) bool {
	return s.allow("set_background_transform") && s.changed(s.store.SetBackgroundTransform(id, scale, offsetX, offsetY))
}

// UploadBackground stores an image and points the scene at it. On failure
// the scene is unchanged and the error is returned. Participants get a nil
// error and no change.
func (s *Session) UploadBackground(ctx context.Context, sceneID, name string, r io.Reader) (string, error) {
	if !s.allow("upload_background") {
		return "", nil
	}
	if _, ok := s.store.Scene(sceneID); !ok {
		return "", nil
	}
	if s.uploader == nil {
		return "", ErrNoUploader
	}
	url, err := s.uploader.Upload(ctx, name, r)
	if err != nil {
		err = wrapUpload(err)
		s.notice(err)
		return "", err
	}
	s.changed(s.store.SetBackground(sceneID, url))
	return url, nil
}

// SetFogEnabled turns fog on or off for a scene.
func (s *Session) SetFogEnabled(id string, enabled bool) bool {
	return s.allow("set_fog") && s.changed(s.store.SetFogEnabled(id, enabled))
}

// ResetFog reveals or hides the whole grid.
func (s *Session) ResetFog(id string, revealed bool) bool {
	return s.allow("reset_fog") && s.changed(s.store.ResetFog(id, revealed))
}

// BrushFog paints the view's brush at a cell of the current scene.
func (s *Session) BrushFog(cx, cy int) bool {
	if !s.allow("brush_fog") {
		return false
	}
	id, ok := s.currentID()
	if !ok {
		return false
	}
	s.mu.Lock()
	radius, mode := s.view.BrushRadius, s.view.BrushMode
	s.mu.Unlock()
	return s.changed(s.store.ApplyFogBrush(id, cx, cy, radius, mode))
}

// SetBrush sets the local fog brush.
func (s *Session) SetBrush(radius int, mode fog.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SetBrushRadius(radius)
	s.view.BrushMode = mode
}
