package util

import (
	"errors"
	"strings"
)

const maxFileNameRunes = 200

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName reduces an uploaded name to its last path element and drops
// characters that cannot appear in a quoted Content-Disposition filename.
func SanitizeFileName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidFileName
	}
	if runes := []rune(name); len(runes) > maxFileNameRunes {
		name = string(runes[len(runes)-maxFileNameRunes:])
	}
	return name, nil
}
