// Package export hands downloaded scenario archives to a save-as target.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseName = "scenario_results"

// Saver stores a named binary payload.
type Saver interface {
	Save(filename string, data []byte) (string, error)
}

// FileName returns the archive name for a scenario.
func FileName(scenarioName string) string {
	name := strings.TrimSpace(scenarioName)
	if name == "" {
		name = defaultBaseName
	}
	return name + ".zip"
}

// FileSaver writes payloads into a directory.
type FileSaver struct {
	dir string
}

func NewFileSaver(dir string) *FileSaver {
	return &FileSaver{dir: dir}
}

// Save writes data under dir. Path separators in filename are replaced so the
// file always lands directly in dir.
func (s *FileSaver) Save(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	safe := strings.NewReplacer("/", "_", `\`, "_").Replace(filename)
	path := filepath.Join(s.dir, safe)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
