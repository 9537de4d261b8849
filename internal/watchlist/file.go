package watchlist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type fileState struct {
	Symbols   []string  `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore keeps the watchlist in a JSON file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

// Load reads the watchlist. Returns nil if the file doesn't exist.
func (s *FileStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Symbols == nil {
		state.Symbols = []string{}
	}
	return state.Symbols, nil
}

// Save writes the watchlist to the JSON file, creating its directory if needed.
func (s *FileStore) Save(symbols []string) error {
	if symbols == nil {
		symbols = []string{}
	}
	data, err := json.MarshalIndent(fileState{Symbols: symbols, UpdatedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.Path, data, 0644)
}
