package utils

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strings"
)

// CalculateHash generates a CRC32 hash of the data
func CalculateHash(data []byte) string {
	table := crc32.MakeTable(crc32.IEEE)
	return fmt.Sprintf("\"%08x\"", crc32.Checksum(data, table))
}

// VersionOf returns the version of a value tree: the hash of its JSON
// encoding. Map keys are encoded sorted, so equal trees share a version.
func VersionOf(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("error encoding value: %w", err)
	}
	return CalculateHash(data), nil
}

// IDFromPath converts a file path under root to a container id: the
// slash-separated relative path without ext.
func IDFromPath(root, path, ext string) (string, error) {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside of %s", path, root)
	}
	return filepath.ToSlash(strings.TrimSuffix(relPath, ext)), nil
}

// PathFromID converts a container id back to its file path under root
func PathFromID(root, id, ext string) string {
	return filepath.Join(root, filepath.FromSlash(id)+ext)
}
