package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore keeps one JSON file per transcript below Root, laid out as
// <root>/<world>/<chat>/<id>.json.
type DirStore struct {
	Root string
}

// NewDirStore returns a store rooted at root. The directory is created on
// first save.
func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root}
}

// Path returns the file a transcript is stored in.
func (d *DirStore) Path(worldID, chatID, id string) string {
	return filepath.Join(d.Root, safe(worldID), safe(chatID), safe(id)+".json")
}

// Save writes t, replacing an existing file with the same id.
func (d *DirStore) Save(t Transcript) error {
	path := d.Path(t.WorldID, t.ChatID, t.ID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}

	data, err := Encode(t)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Get reads a transcript or returns ErrNotFound.
func (d *DirStore) Get(worldID, chatID, id string) (Transcript, error) {
	data, err := os.ReadFile(d.Path(worldID, chatID, id))
	if errors.Is(err, fs.ErrNotExist) {
		return Transcript{}, ErrNotFound
	}
	if err != nil {
		return Transcript{}, err
	}

	return Decode(data)
}

// List returns the sorted transcript ids of a chat.
func (d *DirStore) List(worldID, chatID string) ([]string, error) {
	files, err := os.ReadDir(filepath.Join(d.Root, safe(worldID), safe(chatID)))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(f.Name(), ".json"))
	}
	sort.Strings(ids)

	return ids, nil
}

// Delete removes a transcript file or returns ErrNotFound.
func (d *DirStore) Delete(worldID, chatID, id string) error {
	err := os.Remove(d.Path(worldID, chatID, id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// safe keeps ids from escaping their directory.
func safe(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}
