// Package version resolves the firmware version that goes into the
// auto-commit message.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultFileName is the version file expected in the project root.
	DefaultFileName = "firmware_version.txt"

	// Unknown is used when no usable version could be read.
	Unknown = "unknown"

	// DefaultMessagePrefix is prepended to the version in commit messages.
	DefaultMessagePrefix = "Auto-commit: build"
)

// Read returns the trimmed contents of fileName inside projectDir. An
// absolute fileName is used as is. A missing or blank file yields Unknown
// and no error; any other read failure yields Unknown and the error.
func Read(projectDir, fileName string) (string, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}

	path := fileName
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectDir, fileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unknown, nil
		}
		return Unknown, fmt.Errorf("read version file %s: %w", path, err)
	}

	v := strings.TrimSpace(string(data))
	if v == "" {
		return Unknown, nil
	}
	return v, nil
}

// CommitMessage builds "<prefix> <version>".
func CommitMessage(prefix, version string) string {
	if prefix == "" {
		prefix = DefaultMessagePrefix
	}
	if version == "" {
		version = Unknown
	}
	return prefix + " " + version
}
