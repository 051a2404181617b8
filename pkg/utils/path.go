package utils

import (
	"path/filepath"
	"strings"
)

// LocalPath resolves location inside dir. Leading slashes and ".." segments
// cannot escape dir, so "/official-rates.json" maps to dir/official-rates.json.
func LocalPath(dir, location string) string {
	rel := strings.TrimLeft(location, "/")
	return filepath.Join(dir, filepath.Clean("/"+rel))
}
