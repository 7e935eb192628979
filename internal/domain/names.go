package domain

import (
	"strings"
	"unicode"
)

// Names the server uses for itself. They can never be registered.
const (
	SystemName  = "System"
	ConsoleName = "ServerConsole"
)

const maxNameLen = 64

// listSeparators would corrupt the line-oriented stores or list encodings.
const listSeparators = "|,;()"

// ValidUsername reports whether name may be registered as an account.
func ValidUsername(name string) bool {
	if name == SystemName || name == ConsoleName {
		return false
	}
	return validName(name) && !strings.ContainsAny(name, "/\\")
}

// ValidGroupName reports whether name may be used for a group. Group names
// become archive file names.
func ValidGroupName(name string) bool {
	if !validName(name) || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return name != "." && name != "None"
}

func validName(name string) bool {
	if name == "" || len(name) > maxNameLen {
		return false
	}
	if strings.ContainsAny(name, listSeparators) {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
