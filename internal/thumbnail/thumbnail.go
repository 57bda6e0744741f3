// Package thumbnail fetches clip thumbnail URLs off the main thread. Results
// wait in a queue until the host loop drains them into the session.
package thumbnail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/queue"
	"github.com/rpa-review/sessioncore/internal/session"
)

const instrumentationName = "github.com/rpa-review/sessioncore/internal/thumbnail"

// MaxBytes caps the body read for one thumbnail.
const MaxBytes = 8 << 20

// Thumbnail is the value stored under the clip's thumbnail custom attribute.
type Thumbnail struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Result is one finished fetch.
type Result struct {
	ClipID    string
	Thumbnail Thumbnail
	Err       error
}

// Dependencies holds what a Loader needs.
type Dependencies struct {
	Client     *http.Client
	Logger     *slog.Logger
	Timeout    time.Duration
	MaxPending int
}

// Loader runs fetches and queues their results.
type Loader struct {
	client  *http.Client
	log     *slog.Logger
	timeout time.Duration
	results *queue.Queue[Result]

	mu       sync.Mutex
	inflight map[string]string
	wg       sync.WaitGroup

	fetched metric.Int64Counter
	failed  metric.Int64Counter
}

// New returns a Loader. A nil client means http.DefaultClient.
func New(deps Dependencies) (*Loader, error) {
	client := deps.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	l := &Loader{
		client:   client,
		log:      log.With("component", "thumbnail"),
		timeout:  deps.Timeout,
		results:  queue.New[Result](deps.MaxPending),
		inflight: make(map[string]string),
	}

	m := otel.Meter(instrumentationName)
	var err error
	l.fetched, err = m.Int64Counter(
		"thumbnail.fetched",
		metric.WithDescription("Thumbnails downloaded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetched counter: %w", err)
	}
	l.failed, err = m.Int64Counter(
		"thumbnail.failed",
		metric.WithDescription("Thumbnail downloads that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	return l, nil
}

// Request starts a fetch of url for a clip. It returns false when url is
// empty or the same fetch is already running.
func (l *Loader) Request(ctx context.Context, clipID, url string) bool {
	if url == "" {
		return false
	}
	l.mu.Lock()
	if l.inflight[clipID] == url {
		l.mu.Unlock()
		return false
	}
	l.inflight[clipID] = url
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		thumb, err := l.fetch(ctx, url)
		if err != nil {
			l.failed.Add(ctx, 1)
		} else {
			l.fetched.Add(ctx, 1)
		}
		l.mu.Lock()
		if l.inflight[clipID] == url {
			delete(l.inflight, clipID)
		}
		l.mu.Unlock()
		if dropped := l.results.Push(Result{ClipID: clipID, Thumbnail: thumb, Err: err}); dropped > 0 {
			l.log.Debug("thumbnail results dropped", "count", dropped)
		}
	}()
	return true
}

// RequestClip fetches the clip's thumbnail_url attribute.
func (l *Loader) RequestClip(ctx context.Context, c *session.Clip) bool {
	url, _ := c.Attr(attr.ThumbnailURL)
	s, _ := url.(string)
	return l.Request(ctx, c.ID, s)
}

func (l *Loader) fetch(ctx context.Context, url string) (Thumbnail, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Thumbnail{URL: url}, fmt.Errorf("building request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Thumbnail{URL: url}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Thumbnail{URL: url}, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes))
	if err != nil {
		return Thumbnail{URL: url}, fmt.Errorf("reading %s: %w", url, err)
	}
	return Thumbnail{URL: url, ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

// Drain applies queued results to the session and returns the ids of the
// clips that received a thumbnail. Results for deleted clips, failed fetches
// and URLs that no longer match the clip are discarded.
func (l *Loader) Drain(s *session.Session) []string {
	var updated []string
	for _, r := range l.results.Drain() {
		if r.Err != nil {
			l.log.Debug("thumbnail fetch failed", "clip", r.ClipID, "error", r.Err)
			continue
		}
		c := s.Clip(r.ClipID)
		if c == nil {
			continue
		}
		if url, _ := c.Attr(attr.ThumbnailURL); url != r.Thumbnail.URL {
			continue
		}
		c.Custom[session.CustomThumbnail] = r.Thumbnail
		updated = append(updated, c.ID)
	}
	return updated
}

// Pending returns the number of results waiting for Drain.
func (l *Loader) Pending() int {
	return l.results.Len()
}

// Wait blocks until every started fetch has queued its result.
func (l *Loader) Wait() {
	l.wg.Wait()
}
