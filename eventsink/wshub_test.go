package eventsink

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/sirupsen/logrus"
)

func TestWSHub_BroadcastsEvents(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	hub := NewWSHub(log)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	defer conn.Close()

	// Wait for the hub to register the viewer before publishing.
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, hub.ClientCount())

	events := sampleEvents()
	for _, ev := range events {
		hub.Publish(ev)
	}

	for i := range events {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, frame, err := conn.ReadMessage()
		assert.NoError(t, err)

		var got struct {
			Kind string `json:"kind"`
		}
		assert.NoError(t, json.Unmarshal(frame, &got))
		check.Equal(t, string(events[i].Kind), got.Kind)
	}
}

func TestWSHub_DisconnectRemovesClient(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	hub := NewWSHub(log)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	deadline = time.Now().Add(5 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	check.Equal(t, 0, hub.ClientCount())

	// Publishing with no viewers is a no-op.
	hub.Publish(sampleEvents()[0])
}
