// Package snapshot reads and writes session state documents: the session's
// primitive-only state record wrapped with a format version.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rpa-review/sessioncore/internal/session"
)

// Version is the document format written by Encode.
const Version = 1

// ErrUnsupportedVersion is returned for documents newer than Version.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Document is the on-disk form of a session.
type Document struct {
	Version int                   `json:"version"`
	SavedAt time.Time             `json:"saved_at"`
	Session session.SessionRecord `json:"session"`
}

// Encode writes the session state as indented JSON.
func Encode(w io.Writer, s *session.Session, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	doc := Document{Version: Version, SavedAt: now.UTC(), Session: s.State()}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	return nil
}

// ReadDocument decodes a document without rebuilding the session.
func ReadDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if doc.Version < 1 || doc.Version > Version {
		return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc, nil
}

// Decode reads a document and rebuilds its session.
func Decode(r io.Reader, seeds session.Seeds, user string) (*session.Session, error) {
	doc, err := ReadDocument(r)
	if err != nil {
		return nil, err
	}
	s, err := session.FromState(doc.Session, seeds, user)
	if err != nil {
		return nil, fmt.Errorf("restoring session %s: %w", doc.Session.ID, err)
	}
	return s, nil
}

// Save writes the session to path through a temporary file in the same
// directory so a failed write leaves the old file intact.
func Save(path string, s *session.Session) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, s, time.Now()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads a session from path.
func Load(path string, seeds session.Seeds, user string) (*session.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f, seeds, user)
}
