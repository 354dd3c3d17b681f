package utils

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/twpayne/go-vfs/v4"
)

// ReadEnv parses a KEY=VALUE env file.
func ReadEnv(file string) (map[string]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return map[string]string{}, err
	}
	defer f.Close()

	return godotenv.Parse(f)
}

// CleanupSlice drops empty and blank entries.
func CleanupSlice(slice []string) []string {
	var cleanSlice []string
	for _, item := range slice {
		if strings.TrimSpace(item) == "" {
			continue
		}
		cleanSlice = append(cleanSlice, item)
	}
	return cleanSlice
}

// UniqueSlice removes duplicated entries keeping the first occurrence.
func UniqueSlice(slice []string) []string {
	keys := make(map[string]bool)
	var list []string
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

// CreateIfNotExists creates the dir tree under the given filesystem.
func CreateIfNotExists(fs vfs.FS, path string) error {
	if _, err := fs.Stat(path); errors.Is(err, os.ErrNotExist) {
		return vfs.MkdirAll(fs, path, os.ModePerm)
	}
	return nil
}

// Exists reports whether path can be stat'ed, following symlinks.
func Exists(fs vfs.FS, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}
