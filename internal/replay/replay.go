// Package replay drives a headless core from a JSON script of API calls and
// host events. Clips are referenced by their creation order in the script and
// playlists by name, so scripts do not depend on generated ids.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/dispatcher"
	"github.com/rpa-review/sessioncore/internal/render"
	"github.com/rpa-review/sessioncore/internal/rpa"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/signal"
	"github.com/rpa-review/sessioncore/internal/snapshot"
	"github.com/rpa-review/sessioncore/internal/storage"
	"github.com/rpa-review/sessioncore/internal/timeline"
	"github.com/rpa-review/sessioncore/internal/value"
	"github.com/rpa-review/sessioncore/pkg/hostinterface"
)

// Media is what the memory host reports for a path.
type Media struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	FPS    float64 `json:"fps"`
}

// Step is one script instruction. Which fields apply depends on Op.
type Step struct {
	Op       string               `json:"op"`
	Playlist string               `json:"playlist,omitempty"`
	Names    []string             `json:"names,omitempty"`
	Paths    []string             `json:"paths,omitempty"`
	Clip     int                  `json:"clip,omitempty"`
	Clips    []int                `json:"clips,omitempty"`
	Attr     string               `json:"attr,omitempty"`
	Value    any                  `json:"value,omitempty"`
	Frame    int                  `json:"frame,omitempty"`
	Points   [][2]float64         `json:"points,omitempty"`
	Color    []float64            `json:"color,omitempty"`
	Width    float64              `json:"width,omitempty"`
	Text     string               `json:"text,omitempty"`
	Name     string               `json:"name,omitempty"`
	Mode     string               `json:"mode,omitempty"`
	Node     int                  `json:"node,omitempty"`
	Values   map[string][]float64 `json:"values,omitempty"`
	Args     []string             `json:"args,omitempty"`
	Duration string               `json:"duration,omitempty"`
	Path     string               `json:"path,omitempty"`
}

// Script is a replay document.
type Script struct {
	Media map[string]Media `json:"media"`
	Steps []Step           `json:"steps"`
}

// ReadScript decodes a script.
func ReadScript(r io.Reader) (Script, error) {
	var s Script
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("decoding script: %w", err)
	}
	return s, nil
}

// Summary describes the state after a replay.
type Summary struct {
	SessionID    string         `json:"session_id"`
	Playlists    int            `json:"playlists"`
	Clips        int            `json:"clips"`
	FrameRange   [2]int         `json:"frame_range"`
	CurrentFrame int            `json:"current_frame"`
	CurrentClip  string         `json:"current_clip"`
	Signals      map[string]int `json:"signals"`
	Responses    []string       `json:"responses,omitempty"`
	Failures     []string       `json:"failures,omitempty"`
	Redraws      int            `json:"redraws"`
	GLCalls      int            `json:"gl_calls"`
	Archived     []uint         `json:"archived,omitempty"`
}

// Runner owns the headless core a script is played against.
type Runner struct {
	Core *rpa.Core
	Host *hostinterface.MemoryHost
	GL   *render.RecordingGL

	archive *storage.Archive
	log     *slog.Logger
	now     time.Time
	clips   []string
	signals map[string]int
	summary Summary
}

// Options configures a Runner.
type Options struct {
	Seeds  session.Seeds
	User   string
	Render render.Config
	Logger *slog.Logger
	// DispatcherLogger receives host event logs; nil disables them.
	DispatcherLogger dispatcher.Logger
	// Start is the initial clock; zero uses time.Now.
	Start time.Time
	// Archive receives "archive" steps; nil makes them fail.
	Archive *storage.Archive
}

// NewRunner builds a core around a memory host and a recording GL.
func NewRunner(opts Options) (*Runner, error) {
	r := &Runner{
		Host:    hostinterface.NewMemoryHost(),
		GL:      render.NewRecordingGL(),
		archive: opts.Archive,
		log:     opts.Logger,
		now:     opts.Start,
		signals: make(map[string]int),
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.now.IsZero() {
		r.now = time.Now()
	}
	core, err := rpa.New(rpa.Dependencies{
		Host:             r.Host,
		GL:               r.GL,
		Logger:           r.log,
		DispatcherLogger: opts.DispatcherLogger,
		Seeds:            opts.Seeds,
		User:             opts.User,
		Render:           opts.Render,
		Now:              func() time.Time { return r.now },
	})
	if err != nil {
		return nil, err
	}
	r.Core = core
	for _, k := range signal.Kinds() {
		core.Signals.Subscribe(k, func(ev signal.Event) { r.signals[ev.Kind.String()]++ })
	}
	return r, nil
}

// Run plays every step. A failing step is recorded and the script goes on.
func (r *Runner) Run(s Script) Summary {
	for path, m := range s.Media {
		r.Host.SetMedia(path, hostinterface.MediaInfo{
			Width: m.Width, Height: m.Height, StartFrame: m.Start, EndFrame: m.End, FPS: m.FPS,
		})
	}
	for i, st := range s.Steps {
		if err := r.step(st); err != nil {
			r.log.Warn("replay step failed", "step", i, "op", st.Op, "error", err)
			r.summary.Failures = append(r.summary.Failures, fmt.Sprintf("%d %s: %v", i, st.Op, err))
		}
	}
	return r.Summary()
}

// Summary reports the current state.
func (r *Runner) Summary() Summary {
	c := r.Core
	out := r.summary
	out.SessionID = c.Session.ID
	out.Playlists = len(c.SessionAPI.GetPlaylists())
	out.Clips = c.Session.ClipCount()
	first, last := c.Timeline.GetFrameRange()
	out.FrameRange = [2]int{first, last}
	out.CurrentFrame = c.Timeline.GetCurrentFrame()
	out.CurrentClip = c.SessionAPI.GetCurrentClip()
	out.Signals = make(map[string]int, len(r.signals))
	for k, v := range r.signals {
		out.Signals[k] = v
	}
	out.Redraws = r.Host.Redraws()
	out.GLCalls = len(r.GL.Calls)
	return out
}

// playlist resolves a playlist name; empty means the foreground playlist.
func (r *Runner) playlist(name string) (string, error) {
	api := r.Core.SessionAPI
	if name == "" {
		return api.GetFgPlaylist(), nil
	}
	for _, id := range api.GetPlaylists() {
		if api.GetPlaylistName(id) == name {
			return id, nil
		}
	}
	return "", fmt.Errorf("no playlist named %q", name)
}

func (r *Runner) clip(i int) (string, error) {
	if i < 0 || i >= len(r.clips) {
		return "", fmt.Errorf("clip %d not created", i)
	}
	return r.clips[i], nil
}

func (r *Runner) clipList(idx []int) ([]string, error) {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		id, err := r.clip(i)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func points(ps [][2]float64) []value.Point {
	out := make([]value.Point, len(ps))
	for i, p := range ps {
		out[i] = value.Point{X: p[0], Y: p[1]}
	}
	return out
}

func color(c []float64) (value.Color, error) {
	switch len(c) {
	case 0:
		return value.White, nil
	case 3:
		return value.NewColor(c[0], c[1], c[2], 1)
	case 4:
		return value.NewColor(c[0], c[1], c[2], c[3])
	}
	return value.Color{}, fmt.Errorf("%w: color needs 3 or 4 channels", value.ErrInvalidArgument)
}

// plain turns json.Number values into int or float64.
func plain(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	f, _ := n.Float64()
	return f
}

func (r *Runner) step(st Step) error {
	c := r.Core
	switch strings.ToLower(st.Op) {
	case "create_playlists":
		_, err := c.SessionAPI.CreatePlaylists(st.Names, -1, nil)
		return err

	case "create_clips":
		pl, err := r.playlist(st.Playlist)
		if err != nil {
			return err
		}
		ids, err := c.SessionAPI.CreateClips(pl, st.Paths, -1)
		r.clips = append(r.clips, ids...)
		return err

	case "delete_clips":
		ids, err := r.clipList(st.Clips)
		if err != nil {
			return err
		}
		c.SessionAPI.DeleteClips(ids)
		return nil

	case "set_active":
		pl, err := r.playlist(st.Playlist)
		if err != nil {
			return err
		}
		ids, err := r.clipList(st.Clips)
		if err != nil {
			return err
		}
		c.SessionAPI.SetActiveClips(pl, ids)
		return nil

	case "set_fg", "set_bg":
		pl, err := r.playlist(st.Playlist)
		if err != nil {
			return err
		}
		if st.Op == "set_fg" {
			c.SessionAPI.SetFgPlaylist(pl)
		} else {
			c.SessionAPI.SetBgPlaylist(pl)
		}
		return nil

	case "set_bg_mode":
		mode, err := session.ParseBgMode(st.Mode)
		if err != nil {
			return err
		}
		_, err = c.Viewport.SetBgMode(mode)
		return err

	case "set_frame_mode":
		mode, err := session.ParseFrameMode(st.Mode)
		if err != nil {
			return err
		}
		_, err = c.SessionAPI.SetCurrentFrameMode(mode)
		return err

	case "set_playback_mode":
		mode, err := timeline.ParsePlaybackMode(st.Mode)
		if err != nil {
			return err
		}
		c.Timeline.SetPlaybackMode(mode)
		return nil

	case "set_attr":
		id, err := r.clip(st.Clip)
		if err != nil {
			return err
		}
		return c.SessionAPI.SetAttrValues([]rpa.AttrValue{{ClipID: id, AttrID: st.Attr, Value: plain(st.Value)}})

	case "goto":
		c.Timeline.GotoFrame(st.Frame)
		return nil

	case "stroke":
		id, err := r.clip(st.Clip)
		if err != nil {
			return err
		}
		col, err := color(st.Color)
		if err != nil {
			return err
		}
		mode := annotation.ModePen
		if st.Mode == "eraser" {
			mode = annotation.ModeEraser
		}
		_, err = c.Annotations.AppendStrokes(id, st.Frame, []*annotation.Stroke{{
			Mode: mode, Brush: annotation.BrushCircle, Width: st.Width, Color: col, Points: points(st.Points),
		}})
		return err

	case "text":
		id, err := r.clip(st.Clip)
		if err != nil {
			return err
		}
		col, err := color(st.Color)
		if err != nil {
			return err
		}
		var pos value.Point
		if len(st.Points) > 0 {
			pos = points(st.Points)[0]
		}
		_, err = c.Annotations.AppendTexts(id, st.Frame, []*annotation.Text{{
			Text: st.Text, Position: pos, Color: col, Size: st.Width,
		}})
		return err

	case "clear", "undo", "redo":
		id, err := r.clip(st.Clip)
		if err != nil {
			return err
		}
		op := map[string]func(string, int) bool{
			"clear": c.Annotations.Clear,
			"undo":  c.Annotations.Undo,
			"redo":  c.Annotations.Redo,
		}[st.Op]
		op(id, st.Frame)
		return nil

	case "append_cc":
		id, err := r.clip(st.Clip)
		if err != nil {
			return err
		}
		c.Color.AppendCCs(id, nil, []*colorcorrection.ColorCorrection{
			colorcorrection.NewColorCorrection("", st.Name, colorcorrection.NewColorTimer()),
		})
		return nil

	case "set_node":
		id, err := r.clip(st.Clip)
		if err != nil {
			return err
		}
		ccs := c.Color.GetCCs(id, nil)
		var ccID string
		for _, cc := range ccs {
			if cc.Name == st.Name {
				ccID = cc.ID
			}
		}
		if ccID == "" {
			return fmt.Errorf("clip %d has no correction %q", st.Clip, st.Name)
		}
		_, err = c.Color.SetNodeProperties(id, ccID, st.Node, st.Values)
		return err

	case "overlay":
		var pos value.Point
		if len(st.Points) > 0 {
			pos = points(st.Points)[0]
		}
		_, err := c.Viewport.SetHTMLOverlay(session.Overlay{
			HTML: st.Text, X: pos.X, Y: pos.Y, Width: st.Width, Height: st.Width, BgOpacity: 1, Visible: true,
		})
		return err

	case "laser":
		if len(st.Points) == 0 {
			return fmt.Errorf("%w: laser needs a point", value.ErrInvalidArgument)
		}
		col, err := color(st.Color)
		if err != nil {
			return err
		}
		_, err = c.Viewport.SetLaserPointer(st.Name, points(st.Points)[0], col, st.Width)
		return err

	case "message":
		var d time.Duration
		if st.Duration != "" {
			var err error
			if d, err = time.ParseDuration(st.Duration); err != nil {
				return fmt.Errorf("%w: duration %q", value.ErrInvalidArgument, st.Duration)
			}
		}
		c.Viewport.DisplayMsg(st.Text, d)
		return nil

	case "advance":
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return fmt.Errorf("%w: duration %q", value.ErrInvalidArgument, st.Duration)
		}
		r.now = r.now.Add(d)
		return nil

	case "event":
		r.summary.Responses = append(r.summary.Responses, c.HandleEvent(st.Name, st.Args))
		return nil

	case "save":
		return snapshot.Save(st.Path, c.Session)
	case "archive":
		if r.archive == nil {
			return fmt.Errorf("no archive configured")
		}
		row, err := r.archive.PutSession(context.Background(), c.Session, r.now)
		if err != nil {
			return err
		}
		r.summary.Archived = append(r.summary.Archived, row.ID)
		return nil
	}
	return fmt.Errorf("%w: unknown op %q", value.ErrInvalidArgument, st.Op)
}

// SignalNames returns the signal counts in name order, for printing.
func (s Summary) SignalNames() []string {
	out := make([]string, 0, len(s.Signals))
	for k := range s.Signals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
