package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewHub(log)
}

func TestBroadcastProgress_DeliversToSubscriber(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := &Client{
		AnalysisID: "abc-123",
		Send:       make(chan []byte, 8),
		Hub:        hub,
	}
	hub.register <- client
	require.Eventually(t, func() bool {
		return hub.GetConnectionCount() == 1
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastProgress(AnalysisProgress{
		AnalysisID: "abc-123",
		Stage:      "simulating",
		Completed:  3,
		Total:      15,
	})

	select {
	case data := <-client.Send:
		var got AnalysisProgress
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "simulating", got.Stage)
		assert.Equal(t, 3, got.Completed)
	case <-time.After(time.Second):
		t.Fatal("no progress message delivered")
	}
}

func TestBroadcastProgress_AfterUnregisterDoesNotPanic(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := &Client{
		AnalysisID: "abc-123",
		Send:       make(chan []byte, 8),
		Hub:        hub,
	}
	hub.register <- client
	require.Eventually(t, func() bool {
		return hub.GetConnectionCount() == 1
	}, time.Second, 5*time.Millisecond)

	hub.unregister <- client
	require.Eventually(t, func() bool {
		return hub.GetConnectionCount() == 0
	}, time.Second, 5*time.Millisecond)

	// The client's Send channel is closed now; a broadcast for the same
	// analysis must not reach it.
	assert.NotPanics(t, func() {
		hub.BroadcastProgress(AnalysisProgress{
			AnalysisID: "abc-123",
			Stage:      "done",
			Completed:  15,
			Total:      15,
		})
	})
}

func TestBroadcastProgress_ConcurrentWithUnregister(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	const rounds = 50
	for i := 0; i < rounds; i++ {
		client := &Client{
			AnalysisID: "stress",
			Send:       make(chan []byte, 1),
			Hub:        hub,
		}
		hub.register <- client
		require.Eventually(t, func() bool {
			return hub.GetConnectionCount() == 1
		}, time.Second, time.Millisecond)

		done := make(chan struct{})
		go func() {
			for j := 0; j < 20; j++ {
				hub.BroadcastProgress(AnalysisProgress{AnalysisID: "stress", Stage: "simulating"})
			}
			close(done)
		}()
		hub.unregister <- client
		<-done

		require.Eventually(t, func() bool {
			return hub.GetConnectionCount() == 0
		}, time.Second, time.Millisecond)
	}
}
