// Package influx exports review session metrics to InfluxDB, falling back to
// a gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/rpa-review/sessioncore/internal/replay"
)

// Measurement names.
const (
	SessionMeasurement = "review_session"
	SignalMeasurement  = "review_signal"
)

// Config addresses the server and the backup file.
type Config struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// Manager handles the client and its backup writer.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        Config
	backupFile *os.File
	writeErrs  chan struct{}
}

// NewManager creates a manager; call Connect before writing.
func NewManager(log zerolog.Logger, cfg Config) *Manager {
	return &Manager{Logger: log, cfg: cfg}
}

// Connect pings the server and opens the writer, or the backup file when the
// server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx export is disabled")
	}

	m.Client = influxdb2.NewClientWithOptions(m.cfg.URL, m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Client.Close()
		m.Client = nil
		m.Logger.Info().Str("backupPath", m.cfg.BackupPath).
			Msg("Failed to reach InfluxDB, writing to backup file")
		return m.openBackup()
	}

	m.IsValid = true
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	m.writeErrs = make(chan struct{})
	go func(errorsCh <-chan error, done chan struct{}) {
		defer close(done)
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors(), m.writeErrs)
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.cfg.BackupPath == "" {
		return errors.New("influx unreachable and no backup path configured")
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %v", err)
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %v", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	line := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// WriteSummary writes the points describing a replayed session.
func (m *Manager) WriteSummary(s replay.Summary, at time.Time) error {
	for _, p := range SummaryPoints(s, at) {
		if err := m.WritePoint(p); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (m *Manager) Close() error {
	if m.Client != nil {
		if m.Writer != nil {
			m.Writer.Flush()
		}
		m.Client.Close()
		if m.writeErrs != nil {
			<-m.writeErrs
		}
		m.Client = nil
	}
	if m.BackupWriter != nil {
		err := m.BackupWriter.Close()
		if cerr := m.backupFile.Close(); err == nil {
			err = cerr
		}
		m.BackupWriter = nil
		return err
	}
	return nil
}

// SummaryPoints turns a replay summary into one session point and one point
// per signal kind that fired.
func SummaryPoints(s replay.Summary, at time.Time) []*influxdb2_write.Point {
	tags := map[string]string{"session_id": s.SessionID}
	points := []*influxdb2_write.Point{
		influxdb2.NewPoint(SessionMeasurement, tags, map[string]any{
			"playlists":     s.Playlists,
			"clips":         s.Clips,
			"frame_start":   s.FrameRange[0],
			"frame_end":     s.FrameRange[1],
			"current_frame": s.CurrentFrame,
			"redraws":       s.Redraws,
			"gl_calls":      s.GLCalls,
			"responses":     len(s.Responses),
			"failures":      len(s.Failures),
		}, at),
	}
	for _, kind := range s.SignalNames() {
		points = append(points, influxdb2.NewPoint(SignalMeasurement,
			map[string]string{"session_id": s.SessionID, "kind": kind},
			map[string]any{"count": s.Signals[kind]}, at))
	}
	return points
}
