package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/croscope/croscope/models"
)

// manualSuffix is the filename convention for uploaded screenshots:
// <displayName>_manual.png.
const manualSuffix = "_manual.png"

// ManualStore persists operator-uploaded screenshots for bot-protected
// sites, keyed by the page's derived display name.
type ManualStore struct {
	dir string
}

// NewManualStore creates the store directory if needed.
func NewManualStore(dir string) (*ManualStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manual screenshot dir: %w", err)
	}
	return &ManualStore{dir: dir}, nil
}

// Save stores uploaded screenshot bytes under the naming convention. The
// filename's base (with or without the _manual.png suffix) becomes the key.
func (s *ManualStore) Save(filename string, data []byte) (string, error) {
	name := sanitizeName(filename)
	if name == "" {
		return "", models.NewAnalysisError(
			models.ErrCodeInvalidInput,
			fmt.Sprintf("invalid screenshot filename %q", filename),
			nil,
		)
	}
	path := filepath.Join(s.dir, name+manualSuffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save manual screenshot: %w", err)
	}
	return name, nil
}

// Has reports whether an uploaded screenshot exists for the display name.
func (s *ManualStore) Has(displayName string) bool {
	_, err := os.Stat(s.path(displayName))
	return err == nil
}

// Load reads the uploaded screenshot for the display name. A missing file
// is MANUAL_NOT_FOUND, which the runner records as that page's failure.
func (s *ManualStore) Load(displayName string) ([]byte, error) {
	data, err := os.ReadFile(s.path(displayName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NewAnalysisError(
				models.ErrCodeManualMissing,
				fmt.Sprintf("manual screenshot %q not found", displayName+manualSuffix),
				err,
			)
		}
		return nil, models.NewAnalysisError(
			models.ErrCodeCapture,
			"failed to read manual screenshot",
			err,
		)
	}
	return data, nil
}

func (s *ManualStore) path(displayName string) string {
	return filepath.Join(s.dir, displayName+manualSuffix)
}

// sanitizeName reduces an uploaded filename to its display-name key,
// rejecting anything that could escape the store directory.
func sanitizeName(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, manualSuffix)
	name = strings.TrimSuffix(name, ".png")
	name = strings.TrimSuffix(name, "_manual")
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) {
		return ""
	}
	return models.DeriveName(name)
}
