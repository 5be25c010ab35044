// Package legacy reads the per-campaign local cache written by clients that
// predate durable storage.
package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tablekeep/vtt/pkg/core"
)

// migratedSuffix marks a cache file that was already promoted.
const migratedSuffix = ".migrated"

// file is the cache shape: the persisted aggregate with lastSaved in place
// of savedAt.
type file struct {
	Scenes         json.RawMessage `json:"scenes"`
	CurrentSceneID *string         `json:"currentSceneId"`
	LastSaved      *time.Time      `json:"lastSaved"`
}

// Cache is a directory of <campaignId>.json files.
type Cache struct {
	Dir string
}

// New returns a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

// Path is the cache file of a campaign.
func (c *Cache) Path(campaignID string) string {
	return filepath.Join(c.Dir, sanitize(campaignID)+".json")
}

// Read returns the cached aggregate, or nil, nil when there is none. A file
// whose scenes member is missing or not an array is an error.
func (c *Cache) Read(campaignID string) (*core.State, error) {
	if c == nil || c.Dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Path(campaignID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy cache: %w", err)
	}
	return Decode(data)
}

// Decode parses cache file contents.
func Decode(data []byte) (*core.State, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode legacy cache: %w", err)
	}
	if raw := strings.TrimSpace(string(f.Scenes)); !strings.HasPrefix(raw, "[") {
		return nil, errors.New("decode legacy cache: scenes is not an array")
	}
	st := &core.State{CurrentSceneID: f.CurrentSceneID}
	if err := json.Unmarshal(f.Scenes, &st.Scenes); err != nil {
		return nil, fmt.Errorf("decode legacy scenes: %w", err)
	}
	if f.LastSaved != nil {
		st.SavedAt = *f.LastSaved
	}
	return st, nil
}

// Write stores st in the cache format.
func (c *Cache) Write(campaignID string, st core.State) error {
	scenes := st.Scenes
	if scenes == nil {
		scenes = []core.Scene{}
	}
	raw, err := json.Marshal(scenes)
	if err != nil {
		return err
	}
	saved := st.SavedAt
	data, err := json.Marshal(file{Scenes: raw, CurrentSceneID: st.CurrentSceneID, LastSaved: &saved})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create legacy cache dir: %w", err)
	}
	return os.WriteFile(c.Path(campaignID), data, 0o644)
}

// MarkMigrated renames the cache file so it is read only once. A missing
// file is not an error.
func (c *Cache) MarkMigrated(campaignID string) error {
	if c == nil || c.Dir == "" {
		return nil
	}
	p := c.Path(campaignID)
	if err := os.Rename(p, p+migratedSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("mark legacy cache migrated: %w", err)
	}
	return nil
}

// Campaigns lists the campaigns with an unmigrated cache file.
func (c *Cache) Campaigns() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	return out, nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, id)
}
