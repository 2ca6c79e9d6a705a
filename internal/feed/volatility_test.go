package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	bps int64
	ts  time.Time
}

func TestRunAppliesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(Frame{Timestamp: 1700000000, VolatilityBps: 3000}))
		require.NoError(t, conn.WriteJSON(Frame{Timestamp: 1700000060, VolatilityBps: 3200}))
		// Malformed and invalid frames are dropped without killing the stream.
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
		require.NoError(t, conn.WriteJSON(Frame{Timestamp: 0, VolatilityBps: 100}))
		require.NoError(t, conn.WriteJSON(Frame{Timestamp: 1700000120, VolatilityBps: 2900}))
	}))
	defer server.Close()

	var mu sync.Mutex
	var samples []recorded
	apply := func(bps int64, ts time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		samples = append(samples, recorded{bps: bps, ts: ts})
		return nil
	}

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, apply)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(samples) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, int64(3000), samples[0].bps)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), samples[0].ts)
	require.Equal(t, int64(3200), samples[1].bps)
	require.Equal(t, int64(2900), samples[2].bps)
}
