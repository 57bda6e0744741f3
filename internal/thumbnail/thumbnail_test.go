package thumbnail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/session"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newLoader(t *testing.T, timeout time.Duration) *Loader {
	t.Helper()
	l, err := New(Dependencies{Timeout: timeout, MaxPending: 8})
	require.NoError(t, err)
	return l
}

func clipWithURL(t *testing.T, s *session.Session, url string) *session.Clip {
	t.Helper()
	c, err := s.CreateClip(s.Viewport.FgID, "/a.exr", "", -1)
	require.NoError(t, err)
	require.NoError(t, c.SetAttr(attr.ThumbnailURL, url, true))
	return c
}

func TestLoader_FetchAndDrain(t *testing.T) {
	srv := newServer(t)
	l := newLoader(t, time.Second)
	s := session.New(session.Seeds{}, "")
	c := clipWithURL(t, s, srv.URL+"/ok.png")

	require.True(t, l.RequestClip(context.Background(), c))
	l.Wait()
	require.Equal(t, 1, l.Pending())
	_, set := c.Custom[session.CustomThumbnail]
	assert.False(t, set, "results wait for the drain")

	assert.Equal(t, []string{c.ID}, l.Drain(s))
	thumb, ok := c.Custom[session.CustomThumbnail].(Thumbnail)
	require.True(t, ok)
	assert.Equal(t, "image/png", thumb.ContentType)
	assert.Equal(t, []byte("png-bytes"), thumb.Data)
	assert.Zero(t, l.Pending())
}

func TestLoader_DiscardedResults(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name  string
		url   string
		setup func(s *session.Session, c *session.Clip)
	}{
		{name: "not found", url: "/missing.png"},
		{name: "timeout", url: "/slow.png"},
		{
			name: "clip deleted",
			url:  "/ok.png",
			setup: func(s *session.Session, c *session.Clip) {
				s.DeleteClips([]string{c.ID})
			},
		},
		{
			name: "url changed",
			url:  "/ok.png",
			setup: func(s *session.Session, c *session.Clip) {
				_ = c.SetAttr(attr.ThumbnailURL, "http://elsewhere/x.png", true)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLoader(t, 50*time.Millisecond)
			s := session.New(session.Seeds{}, "")
			c := clipWithURL(t, s, srv.URL+tt.url)

			require.True(t, l.RequestClip(context.Background(), c))
			l.Wait()
			if tt.setup != nil {
				tt.setup(s, c)
			}
			assert.Empty(t, l.Drain(s))
			_, set := c.Custom[session.CustomThumbnail]
			assert.False(t, set)
		})
	}
}

func TestLoader_RequestRejects(t *testing.T) {
	srv := newServer(t)
	l := newLoader(t, time.Second)

	assert.False(t, l.Request(context.Background(), "clip", ""), "empty url")

	url := srv.URL + "/slow.png"
	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, l.Request(ctx, "clip", url))
	assert.False(t, l.Request(ctx, "clip", url), "same fetch already running")
	cancel()
	l.Wait()
	assert.Equal(t, 1, l.Pending())
}

func TestLoader_PendingLimit(t *testing.T) {
	srv := newServer(t)
	l, err := New(Dependencies{MaxPending: 2})
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, l.Request(context.Background(), id, srv.URL+"/ok.png"))
		l.Wait()
	}
	assert.Equal(t, 2, l.Pending())
}
