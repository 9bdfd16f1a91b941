package watchlist

import (
	"fmt"
	"path/filepath"

	"github.com/proxtrack/pt/internal/fsutil"
	"github.com/proxtrack/pt/internal/security"
)

// Load reads and parses a watchlist document from path, guarded against
// path traversal outside dir. It returns the parsed document and the
// count of malformed items skipped during parsing.
func Load(fs fsutil.FileSystem, dir, path string) (Document, int, error) {
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return Document{}, 0, fmt.Errorf("load watchlist: %w", err)
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return Document{}, 0, fmt.Errorf("load watchlist: %w", err)
	}
	return Parse(data)
}

// Save writes doc to path as JSON, guarded against path traversal outside
// dir. A failed open-for-write leaves any prior file untouched.
func Save(fs fsutil.FileSystem, dir, path string, doc Document) error {
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	if err := fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	return nil
}
