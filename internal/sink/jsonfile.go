package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"PortfolioTracker/internal/model"
)

// JSONFile writes each window as a JSON snapshot for an external renderer.
// The file is replaced atomically so a reader never sees a half-written snapshot.
type JSONFile struct {
	Path string
}

func NewJSONFile(path string) *JSONFile { return &JSONFile{Path: path} }

func (j *JSONFile) Name() string { return "json" }

func (j *JSONFile) Write(ctx context.Context, w *model.Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("encode window: %w", err)
	}
	return writeFileAtomic(j.Path, data)
}

// LoadWindow reads a snapshot written by JSONFile.
func LoadWindow(path string) (*model.Window, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w model.Window
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
