package op

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/twpayne/go-vfs/v4"
)

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// WriteIfChanged replaces path with data through a sibling temp file and a
// rename. It does nothing when the file already holds data.
func WriteIfChanged(fs vfs.FS, path string, data []byte, perm os.FileMode) (bool, error) {
	current, err := fs.ReadFile(path)
	if err == nil && bytes.Equal(current, data) {
		return false, nil
	}
	if err := vfs.MkdirAll(fs, filepath.Dir(path), 0755); err != nil {
		return false, err
	}

	tmp := path + ".stationcore.tmp"
	if err := fs.WriteFile(tmp, data, perm); err != nil {
		return false, err
	}
	// WriteFile is subject to umask
	if err := fs.Chmod(tmp, perm); err != nil {
		_ = fs.Remove(tmp)
		return false, err
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return false, err
	}
	return true, nil
}

func splitLines(content string) []string {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
