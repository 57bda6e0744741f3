// Package storage keeps a history of session snapshots in a gorm database.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/snapshot"
)

// ErrNotFound is returned when no archived snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one archived document. The counts are denormalized so listing
// does not decode every document.
type Snapshot struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	SessionID string         `gorm:"size:64;index" json:"session_id"`
	SavedAt   time.Time      `gorm:"index" json:"saved_at"`
	Version   int            `json:"version"`
	Playlists int            `json:"playlists"`
	Clips     int            `json:"clips"`
	Document  datatypes.JSON `json:"-"`
}

// TableName sets the table name.
func (*Snapshot) TableName() string {
	return "session_snapshots"
}

// Archive stores and retrieves snapshots.
type Archive struct {
	db *gorm.DB
}

// New migrates the schema and returns an archive over db.
func New(db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Put stores doc and returns its row without the document body.
func (a *Archive) Put(ctx context.Context, doc snapshot.Document) (Snapshot, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding session %s: %w", doc.Session.ID, err)
	}
	row := Snapshot{
		SessionID: doc.Session.ID,
		SavedAt:   doc.SavedAt.UTC(),
		Version:   doc.Version,
		Playlists: len(doc.Session.Playlists),
		Clips:     countClips(doc.Session),
		Document:  datatypes.JSON(body),
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Snapshot{}, fmt.Errorf("archiving session %s: %w", doc.Session.ID, err)
	}
	row.Document = nil
	return row, nil
}

// PutSession archives the current state of s.
func (a *Archive) PutSession(ctx context.Context, s *session.Session, now time.Time) (Snapshot, error) {
	return a.Put(ctx, snapshot.Document{Version: snapshot.Version, SavedAt: now, Session: s.State()})
}

// Get returns the document stored under id.
func (a *Archive) Get(ctx context.Context, id uint) (snapshot.Document, error) {
	var row Snapshot
	err := a.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return snapshot.Document{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return snapshot.Document{}, err
	}
	return decode(row)
}

// Latest returns the most recently saved document of a session.
func (a *Archive) Latest(ctx context.Context, sessionID string) (snapshot.Document, error) {
	var row Snapshot
	err := a.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("saved_at DESC").Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return snapshot.Document{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return snapshot.Document{}, err
	}
	return decode(row)
}

// List returns rows newest first, without document bodies. An empty
// sessionID lists every session.
func (a *Archive) List(ctx context.Context, sessionID string) ([]Snapshot, error) {
	q := a.db.WithContext(ctx).Omit("document").Order("saved_at DESC").Order("id DESC")
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var rows []Snapshot
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Prune keeps the newest keep snapshots of a session and deletes the rest.
func (a *Archive) Prune(ctx context.Context, sessionID string, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	var ids []uint
	err := a.db.WithContext(ctx).Model(&Snapshot{}).
		Where("session_id = ?", sessionID).
		Order("saved_at DESC").Order("id DESC").
		Pluck("id", &ids).Error
	if err != nil || len(ids) <= keep {
		return 0, err
	}
	res := a.db.WithContext(ctx).Delete(&Snapshot{}, ids[keep:])
	return res.RowsAffected, res.Error
}

func decode(row Snapshot) (snapshot.Document, error) {
	doc, err := snapshot.ReadDocument(bytes.NewReader(row.Document))
	if err != nil {
		return snapshot.Document{}, fmt.Errorf("snapshot %d: %w", row.ID, err)
	}
	return doc, nil
}

func countClips(s session.SessionRecord) int {
	n := 0
	for _, p := range s.Playlists {
		n += len(p.Clips)
	}
	return n
}
