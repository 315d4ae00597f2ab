package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/story-api/internal/story"
)

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub([]string{"*"}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	clients := make([]*websocket.Conn, 2)
	for i := range clients {
		conn, _, err := dial(t, srv, nil)
		require.NoError(t, err)
		defer conn.Close()
		clients[i] = conn
	}
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	hub.Publish(context.Background(), story.Event{
		Type:  story.EventCreated,
		Story: &story.Story{ID: "s1", UserID: "u1", MediaType: story.MediaVideo, CreatedAt: created},
	})

	for _, conn := range clients {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "story.created", msg.Type)
		assert.Equal(t, "s1", msg.StoryID)
		assert.Equal(t, "u1", msg.UserID)
		assert.Equal(t, "video", msg.MediaType)
		assert.True(t, created.Equal(msg.CreatedAt))
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub([]string{"*"}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	// publishing with no subscribers is a no-op
	hub.Publish(context.Background(), story.Event{Type: story.EventDeleted, Story: &story.Story{ID: "s1"}})
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"https://app.example.com"}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := dial(t, srv, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dial(t, srv, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHub_IgnoresEventsWithoutStory(t *testing.T) {
	hub := NewHub(nil, nil)
	assert.NotPanics(t, func() {
		hub.Publish(context.Background(), story.Event{Type: story.EventCreated})
	})
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub([]string{"*"}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	// never reads, so the socket buffers fill up
	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	big := &story.Story{ID: "s1", UserID: strings.Repeat("u", 1<<20)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(context.Background(), story.Event{Type: story.EventCreated, Story: big})
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("publish blocked on a subscriber that does not read")
	}
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}
