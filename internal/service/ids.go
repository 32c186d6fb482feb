package service

import (
	"path/filepath"
	"strings"
)

// storedKey names the raw upload in the file store, "<user_id>/<filename>". Neither
// part can contain a slash, so keys of different users never meet.
func storedKey(userID, filename string) string {
	return userID + "/" + filename
}

// cleanFilename keeps the base name of an uploaded file and drops characters that
// cannot appear in a file store key or a question filter.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\x00':
			return -1
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			return '_'
		}
		return r
	}, name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
