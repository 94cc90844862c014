// Package fsutil provides small filesystem helpers shared by the durable
// stores: atomic whole-file writes, filename sanitizing, and error-message
// truncation for persisted records.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxErrorMessageLength bounds error strings persisted to the failed stream.
const MaxErrorMessageLength = 1024

// MaxFilenameLength bounds a single sanitized path component.
const MaxFilenameLength = 150

// WriteFileAtomic writes data to path via a temp file and rename so readers
// never observe a partially written document.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".harvester-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

// SanitizeFilename strips characters that are invalid in path components
// and bounds the result length.
func SanitizeFilename(name string) string {
	const invalid = `<>:"/\|?*`
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(strings.TrimSpace(name), ".")
	if len(name) > MaxFilenameLength {
		name = name[:MaxFilenameLength]
	}
	return name
}

// TruncateError bounds an error message before it is persisted, stripping
// newlines so it stays a single log-record field.
func TruncateError(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) > MaxErrorMessageLength {
		msg = msg[:MaxErrorMessageLength]
	}
	return msg
}
