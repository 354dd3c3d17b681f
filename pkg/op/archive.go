package op

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/twpayne/go-vfs/v4"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Decompress wraps r with the decompressor matching its magic bytes. Plain
// tar streams are returned as they are.
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(xzMagic))

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, nil
	default:
		return br, nil
	}
}

// StagingDir is where an archive is unpacked before its subpaths replace
// the ones in dest.
const StagingDir = ".stationcore-src"

// ExtractSubpaths unpacks only the entries under subpaths, after removing
// strip leading components from every entry name, into dest. The archive is
// staged next to dest first and each subpath only replaces the current one
// once the whole archive was read and every subpath was found, so a failed
// extraction leaves dest as it was.
func ExtractSubpaths(fs vfs.FS, r io.Reader, dest string, strip int, subpaths []string) error {
	stage := filepath.Join(dest, StagingDir)
	if err := fs.RemoveAll(stage); err != nil {
		return fmt.Errorf("failed to clear staging dir: %w", err)
	}
	if err := vfs.MkdirAll(fs, stage, 0755); err != nil {
		return err
	}
	defer func() {
		_ = fs.RemoveAll(stage)
	}()

	if err := extractInto(fs, r, stage, strip, subpaths); err != nil {
		return err
	}

	for _, sp := range subpaths {
		sp = strings.Trim(sp, "/")
		target := filepath.Join(dest, sp)
		if err := fs.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove %s: %w", sp, err)
		}
		if err := vfs.MkdirAll(fs, filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := fs.Rename(filepath.Join(stage, sp), target); err != nil {
			return fmt.Errorf("failed to move %s into place: %w", sp, err)
		}
	}
	return nil
}

func extractInto(fs vfs.FS, r io.Reader, stage string, strip int, subpaths []string) error {
	reader, err := Decompress(r)
	if err != nil {
		return err
	}
	tr := tar.NewReader(reader)
	found := map[string]bool{}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		name, ok := stripComponents(header.Name, strip)
		if !ok {
			continue
		}
		sp := matchSubpath(name, subpaths)
		if sp == "" {
			continue
		}
		found[sp] = true

		target := filepath.Join(stage, name)
		if !within(stage, target) {
			return fmt.Errorf("invalid tar path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := vfs.MkdirAll(fs, target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := vfs.MkdirAll(fs, filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", header.Name, err)
			}
			mode := os.FileMode(header.Mode).Perm()
			if err := fs.WriteFile(target, data, mode); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			if err := fs.Chmod(target, mode); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Links may only point inside the subpath they belong to.
			if filepath.IsAbs(header.Linkname) || !within(filepath.Join(stage, sp), filepath.Join(filepath.Dir(target), header.Linkname)) {
				return fmt.Errorf("invalid symlink %s -> %s", header.Name, header.Linkname)
			}
			if err := vfs.MkdirAll(fs, filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := fs.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink: %w", err)
			}
		}
	}

	var missing []string
	for _, sp := range subpaths {
		if !found[strings.Trim(sp, "/")] {
			missing = append(missing, sp)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("archive does not contain %s", strings.Join(missing, ", "))
	}
	return nil
}

// within reports whether p is root or below it.
func within(root, p string) bool {
	root, p = filepath.Clean(root), filepath.Clean(p)
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}

func stripComponents(name string, strip int) (string, bool) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	parts := strings.Split(name, "/")
	if len(parts) <= strip {
		return "", false
	}
	return strings.Join(parts[strip:], "/"), true
}

func matchSubpath(name string, subpaths []string) string {
	for _, sp := range subpaths {
		sp = strings.Trim(sp, "/")
		if name == sp || strings.HasPrefix(name, sp+"/") {
			return sp
		}
	}
	return ""
}
