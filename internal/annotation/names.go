package annotation

import (
	"fmt"
	"strconv"
	"strings"
)

// Host paint-node draw names look like "<kind>:<id>:<frame>:<creator>".
const (
	PenPrefix  = "pen"
	TextPrefix = "text"

	transientTag = "transient"
)

// DrawName builds the host name of a committed stroke or text.
func DrawName(prefix string, id, frame int, creator string) string {
	return fmt.Sprintf("%s:%d:%d:%s", prefix, id, frame, creator)
}

// TransientName builds the host name of a live stroke bound to token.
func TransientName(id, frame int, token string) string {
	return fmt.Sprintf("%s:%d:%d:%s:%s", PenPrefix, id, frame, transientTag, token)
}

// TransientMarker is the substring shared by every transient name of token.
func TransientMarker(token string) string {
	return ":" + transientTag + ":" + token
}

// IsTransient reports whether name belongs to a live stroke.
func IsTransient(name string) bool {
	return strings.Contains(name, ":"+transientTag+":")
}

// DrawInfo is the parsed form of a draw name.
type DrawInfo struct {
	Prefix  string
	ID      int
	Frame   int
	Creator string
}

// ParseDrawName splits a host draw name. The creator may itself contain colons.
func ParseDrawName(name string) (DrawInfo, bool) {
	parts := strings.SplitN(name, ":", 4)
	if len(parts) != 4 {
		return DrawInfo{}, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return DrawInfo{}, false
	}
	frame, err := strconv.Atoi(parts[2])
	if err != nil {
		return DrawInfo{}, false
	}
	return DrawInfo{Prefix: parts[0], ID: id, Frame: frame, Creator: parts[3]}, true
}
