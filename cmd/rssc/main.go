// Command rssc is the operator tool for the review core. It prints seeded id
// chains, replays scripts against a headless core, inspects snapshots and
// manages the snapshot archive.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/rpa-review/sessioncore/internal/config"
	"github.com/rpa-review/sessioncore/internal/database"
	"github.com/rpa-review/sessioncore/internal/dispatcher"
	"github.com/rpa-review/sessioncore/internal/influx"
	"github.com/rpa-review/sessioncore/internal/logging"
	intOtel "github.com/rpa-review/sessioncore/internal/otel"
	"github.com/rpa-review/sessioncore/internal/replay"
	"github.com/rpa-review/sessioncore/internal/rpa"
	"github.com/rpa-review/sessioncore/internal/snapshot"
	"github.com/rpa-review/sessioncore/internal/storage"
	"github.com/rpa-review/sessioncore/internal/uid"
)

// EnvConfigDir names the directory holding rssc.cfg.json.
const EnvConfigDir = "RSSC_CONFIG_DIR"

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider exports log records when enabled
	OTelProvider *intOtel.Provider

	// LogFile is the session log, nil when the logs directory is unusable
	LogFile *os.File

	// logSinks are reused when the logger is rebuilt with session context
	logSinks logging.Sinks

	SessionStartTime = time.Now()
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  rssc ids <seed> <n>        print the first n ids of a seeded chain")
	fmt.Fprintln(w, "  rssc replay <script.json>  play a script against a headless core")
	fmt.Fprintln(w, "  rssc inspect <snapshot>    summarize a saved session")
	fmt.Fprintln(w, "  rssc archive <snapshot>... store snapshots in the archive database")
	fmt.Fprintln(w, "  rssc history [session-id]  list archived snapshots, newest first")
	fmt.Fprintln(w, "  rssc restore <id> <path>   write an archived snapshot to path")
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}

	setup()
	defer shutdown()

	var err error
	switch strings.ToLower(args[0]) {
	case "ids":
		err = printIDs(os.Stdout, args[1:])
	case "replay":
		err = runReplay(os.Stdout, args[1:])
	case "inspect":
		err = inspect(os.Stdout, args[1:])
	case "archive", "history", "restore":
		err = withArchive(func(a *storage.Archive) error {
			return archiveCommand(os.Stdout, a, strings.ToLower(args[0]), args[1:])
		})
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		Logger.Error("command failed", "command", args[0], "error", err)
		fmt.Fprintln(os.Stderr, err)
		shutdown()
		os.Exit(1)
	}
}

// setup loads .env and the config file, then builds the logger with its
// optional Graylog and OTel sinks.
func setup() {
	_ = godotenv.Load()

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "warn", logging.Sinks{})
	Logger = SlogManager.Logger()

	dir := os.Getenv(EnvConfigDir)
	if dir == "" {
		dir = "."
	}
	if err := config.Load(dir); err != nil {
		Logger.Debug("Failed to load config, using defaults", "error", err)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err == nil {
		path := logging.LogFilePath(logsDir, logging.DefaultName, SessionStartTime)
		LogFile, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			Logger.Warn("Failed to open log file", "error", err, "path", path)
		}
	}

	sinks := &logSinks
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Warn("Graylog disabled", "error", err)
		} else {
			sinks.Graylog = w
		}
	}

	tc := config.GetTelemetryConfig()
	if tc.Enabled {
		cfg := intOtel.Config{
			Enabled:      true,
			ServiceName:  tc.ServiceName,
			BatchTimeout: tc.BatchTimeout,
			Endpoint:     tc.Endpoint,
			Insecure:     tc.Insecure,
		}
		if LogFile != nil {
			cfg.LogWriter = LogFile
		}
		var err error
		OTelProvider, err = intOtel.New(cfg)
		if err != nil {
			Logger.Warn("Failed to initialize OTel provider", "error", err)
		} else {
			sinks.OTel = OTelProvider.LoggerProvider()
		}
	}

	setupLogger()
}

// setupLogger rebuilds the logger over the log file and the configured sinks.
func setupLogger() {
	var file io.Writer
	if LogFile != nil {
		file = LogFile
	}
	SlogManager.Setup(file, config.GetString("logLevel"), logSinks)
	Logger = SlogManager.Logger()
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing logs:", err)
	}
	if OTelProvider != nil {
		_ = OTelProvider.Shutdown(ctx)
		OTelProvider = nil
	}
	if LogFile != nil {
		LogFile.Close()
		LogFile = nil
	}
}

func printIDs(w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("ids needs a seed and a count")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return fmt.Errorf("invalid count %q", args[1])
	}
	g := uid.NewGenerator(args[0])
	for range n {
		fmt.Fprintln(w, g.Next())
	}
	return nil
}

func runReplay(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("replay needs a script file")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()
	script, err := replay.ReadScript(f)
	if err != nil {
		return err
	}

	var dl dispatcher.Logger
	if LogFile != nil {
		dl = logging.NewDispatcherLogger(logging.NewZerolog(LogFile, config.GetString("logLevel")))
	}
	if needsArchive(script) {
		return withArchive(func(a *storage.Archive) error {
			return replayScript(w, args[0], script, dl, a)
		})
	}
	return replayScript(w, args[0], script, dl, nil)
}

func needsArchive(s replay.Script) bool {
	for _, st := range s.Steps {
		if st.Op == "archive" {
			return true
		}
	}
	return false
}

func replayScript(w io.Writer, path string, script replay.Script, dl dispatcher.Logger, archive *storage.Archive) error {
	state := &coreState{}
	SlogManager.SetContext(logging.SessionContext(state))
	setupLogger()

	r, err := replay.NewRunner(replay.Options{
		Seeds:            config.GetSeeds(),
		User:             config.GetUser(),
		Render:           rpa.RenderConfig(config.GetRenderConfig(), config.GetLaserConfig()),
		Logger:           Logger,
		DispatcherLogger: dl,
		Archive:          archive,
	})
	if err != nil {
		return err
	}
	defer r.Core.Close()
	state.core = r.Core

	Logger.Info("replaying script", "path", path, "steps", len(script.Steps))
	sum := r.Run(script)
	if OTelProvider != nil {
		if err := OTelProvider.Flush(context.Background()); err != nil {
			Logger.Warn("OTel flush failed", "error", err)
		}
	}

	if ic := config.GetInfluxConfig(); ic.Enabled {
		exportSummary(ic, sum)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

// exportSummary sends the replay metrics to InfluxDB. Failures are logged;
// the replay result stands on its own.
func exportSummary(ic config.InfluxConfig, sum replay.Summary) {
	zl := zerolog.Nop()
	if LogFile != nil {
		zl = logging.NewZerolog(LogFile, config.GetString("logLevel"))
	}
	m := influx.NewManager(zl, influx.Config{
		Enabled:    ic.Enabled,
		URL:        ic.URL,
		Token:      ic.Token,
		Org:        ic.Org,
		Bucket:     ic.Bucket,
		BackupPath: ic.BackupPath,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		Logger.Warn("Influx export disabled", "error", err)
		return
	}
	if err := m.WriteSummary(sum, time.Now()); err != nil {
		Logger.Warn("Influx export failed", "error", err)
	}
	if err := m.Close(); err != nil {
		Logger.Warn("Influx close failed", "error", err)
	}
}

func inspect(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("inspect needs a snapshot file")
	}
	doc, err := readSnapshot(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "session %s (saved %s)\n", doc.Session.ID, doc.SavedAt.Format(time.RFC3339))
	for _, p := range doc.Session.Playlists {
		marker := " "
		if p.ID == doc.Session.FgID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s %q clips=%d\n", marker, p.ID, p.Name, len(p.Clips))
	}
	if n := len(doc.Session.Deleted); n > 0 {
		fmt.Fprintf(w, "deleted playlists: %d\n", n)
	}
	return nil
}

// withArchive opens the configured archive database for the duration of fn.
func withArchive(fn func(*storage.Archive) error) error {
	zl := zerolog.Nop()
	if LogFile != nil {
		zl = logging.NewZerolog(LogFile, config.GetString("logLevel"))
	}
	m := database.NewManager(zl)
	if err := m.Connect(config.GetArchiveConfig()); err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer m.Close()
	a, err := storage.New(m.DB)
	if err != nil {
		return err
	}
	return fn(a)
}

func archiveCommand(w io.Writer, a *storage.Archive, cmd string, args []string) error {
	ctx := context.Background()
	switch cmd {
	case "archive":
		if len(args) == 0 {
			return fmt.Errorf("archive needs at least one snapshot file")
		}
		for _, path := range args {
			doc, err := readSnapshot(path)
			if err != nil {
				return err
			}
			row, err := a.Put(ctx, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d %s %s\n", row.ID, row.SessionID, path)
			if keep := config.GetInt("archive.keep"); keep > 0 {
				if n, err := a.Prune(ctx, row.SessionID, keep); err != nil {
					Logger.Warn("Failed to prune archive", "session", row.SessionID, "error", err)
				} else if n > 0 {
					Logger.Info("pruned archive", "session", row.SessionID, "removed", n)
				}
			}
		}
		return nil

	case "history":
		if len(args) > 1 {
			return fmt.Errorf("history takes at most one session id")
		}
		var id string
		if len(args) == 1 {
			id = args[0]
		}
		rows, err := a.List(ctx, id)
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%d %s %s playlists=%d clips=%d\n",
				r.ID, r.SessionID, r.SavedAt.Format(time.RFC3339), r.Playlists, r.Clips)
		}
		return nil

	case "restore":
		if len(args) != 2 {
			return fmt.Errorf("restore needs an archive id and an output path")
		}
		id, err := strconv.ParseUint(args[0], 10, 0)
		if err != nil {
			return fmt.Errorf("invalid archive id %q", args[0])
		}
		doc, err := a.Get(ctx, uint(id))
		if err != nil {
			return err
		}
		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("creating %s: %w", args[1], err)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", args[1], err)
		}
		return f.Close()
	}
	return fmt.Errorf("unknown archive command %q", cmd)
}

func readSnapshot(path string) (snapshot.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapshot.Document{}, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return snapshot.ReadDocument(f)
}

// coreState reports the replayed core's session to the log context once the
// core exists.
type coreState struct {
	core *rpa.Core
}

func (s *coreState) SessionID() string {
	if s.core == nil {
		return ""
	}
	return s.core.SessionID()
}

func (s *coreState) CurrentFrame() int {
	if s.core == nil {
		return 0
	}
	return s.core.CurrentFrame()
}

func (s *coreState) FgPlaylistID() string {
	if s.core == nil {
		return ""
	}
	return s.core.FgPlaylistID()
}
