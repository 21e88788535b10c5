package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.UserRegistered()
	m.ChatCreated()
	m.ChatCreated()
	m.MessageStored()
	m.FrameDelivered()
	m.FrameDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.usersRegistered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.chatsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDelivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped))
}

func TestGauges(t *testing.T) {
	m := New()

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.SetRooms(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.realtimeConns))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.realtimeRooms))
}

func TestHandler_ExposesRelayMetrics(t *testing.T) {
	m := New()
	m.MessageStored()
	m.ObserveRequest(http.MethodPost, "/messages", http.StatusCreated, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "relay_messages_stored_total 1")
	assert.Contains(t, string(body), `relay_http_request_duration_seconds_count{method="POST",route="/messages",status="201"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
