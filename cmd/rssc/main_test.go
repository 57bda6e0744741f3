package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/config"
	"github.com/rpa-review/sessioncore/internal/database"
	"github.com/rpa-review/sessioncore/internal/replay"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/snapshot"
	"github.com/rpa-review/sessioncore/internal/storage"
	"github.com/rpa-review/sessioncore/internal/uid"
)

func TestPrintIDs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printIDs(&buf, []string{"seed", "3"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	g := uid.NewGenerator("seed")
	for _, l := range lines {
		assert.Equal(t, g.Next(), l)
	}
}

func TestPrintIDs_BadArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing count", []string{"seed"}},
		{"not a number", []string{"seed", "x"}},
		{"negative", []string{"seed", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, printIDs(&bytes.Buffer{}, tt.args))
		})
	}
}

func TestInspect(t *testing.T) {
	s := session.New(session.Seeds{Playlist: "pl-seed"}, "reviewer")
	_, err := s.CreateClips(s.Viewport.FgID, []string{"a.mov", "b.mov"}, -1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, snapshot.Save(path, s))

	var buf bytes.Buffer
	require.NoError(t, inspect(&buf, []string{path}))
	out := buf.String()
	assert.Contains(t, out, "session "+s.ID)
	assert.Contains(t, out, "* "+s.Viewport.FgID)
	assert.Contains(t, out, "clips=2")
}

func TestInspect_MissingFile(t *testing.T) {
	err := inspect(&bytes.Buffer{}, []string{filepath.Join(os.TempDir(), "does-not-exist.json")})
	assert.Error(t, err)
}

func newTestArchive(t *testing.T) *storage.Archive {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(database.Config{Type: "sqlite"}))
	t.Cleanup(func() { m.Close() })
	a, err := storage.New(m.DB)
	require.NoError(t, err)
	return a
}

func TestArchiveCommands(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("archive.keep", 1)
	Logger = slog.New(slog.DiscardHandler)

	s := session.New(session.Seeds{Playlist: "pl-seed"}, "reviewer")
	_, err := s.CreateClips(s.Viewport.FgID, []string{"a.mov"}, -1)
	require.NoError(t, err)
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	require.NoError(t, snapshot.Save(path, s))

	a := newTestArchive(t)
	var buf bytes.Buffer
	require.NoError(t, archiveCommand(&buf, a, "archive", []string{path, path}))
	assert.Equal(t, 2, strings.Count(buf.String(), s.ID))

	buf.Reset()
	require.NoError(t, archiveCommand(&buf, a, "history", []string{s.ID}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "older snapshot pruned")
	assert.Contains(t, lines[0], "clips=1")
	id := strings.Fields(lines[0])[0]

	out := filepath.Join(dir, "restored.json")
	require.NoError(t, archiveCommand(&bytes.Buffer{}, a, "restore", []string{id, out}))
	got, err := snapshot.Load(out, session.Seeds{}, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestArchiveCommands_BadArgs(t *testing.T) {
	a := newTestArchive(t)
	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"archive without files", "archive", nil},
		{"archive missing file", "archive", []string{filepath.Join(os.TempDir(), "does-not-exist.json")}},
		{"history too many", "history", []string{"a", "b"}},
		{"restore missing args", "restore", []string{"1"}},
		{"restore bad id", "restore", []string{"x", "out.json"}},
		{"restore unknown id", "restore", []string{"99", filepath.Join(os.TempDir(), "out.json")}},
		{"unknown", "purge", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, archiveCommand(&bytes.Buffer{}, a, tt.cmd, tt.args))
		})
	}
}

func TestNeedsArchive(t *testing.T) {
	assert.False(t, needsArchive(replay.Script{Steps: []replay.Step{{Op: "goto"}}}))
	assert.True(t, needsArchive(replay.Script{Steps: []replay.Step{{Op: "goto"}, {Op: "archive"}}}))
}

func TestExportSummary_Backup(t *testing.T) {
	Logger = slog.New(slog.DiscardHandler)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	exportSummary(config.InfluxConfig{Enabled: true, URL: srv.URL, Bucket: "review", BackupPath: path},
		replay.Summary{SessionID: "s", Signals: map[string]int{}})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
