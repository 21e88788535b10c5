// Package metrics holds the Prometheus collectors of the relay on a
// private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	usersRegistered prometheus.Counter
	chatsCreated    prometheus.Counter
	messagesStored  prometheus.Counter
	framesDelivered prometheus.Counter
	framesDropped   prometheus.Counter
	realtimeConns   prometheus.Gauge
	realtimeRooms   prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	return &Metrics{
		reg: reg,

		usersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_users_registered_total",
			Help: "Identities issued by the relay",
		}),
		chatsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_chats_created_total",
			Help: "Chats created",
		}),
		messagesStored: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_stored_total",
			Help: "Encrypted messages accepted and stored",
		}),
		framesDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_realtime_frames_delivered_total",
			Help: "newMessage frames queued to websocket clients",
		}),
		framesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_realtime_frames_dropped_total",
			Help: "Frames dropped because a client's send buffer was full",
		}),
		realtimeConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_realtime_connections",
			Help: "Open websocket connections",
		}),
		realtimeRooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_realtime_rooms",
			Help: "Chats with at least one joined websocket client",
		}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.reg, promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

func (m *Metrics) UserRegistered() { m.usersRegistered.Inc() }
func (m *Metrics) ChatCreated() { m.chatsCreated.Inc() }
func (m *Metrics) MessageStored() { m.messagesStored.Inc() }
func (m *Metrics) FrameDelivered() { m.framesDelivered.Inc() }
func (m *Metrics) FrameDropped() { m.framesDropped.Inc() }
func (m *Metrics) ConnOpened() { m.realtimeConns.Inc() }
func (m *Metrics) ConnClosed() { m.realtimeConns.Dec() }
func (m *Metrics) SetRooms(n int) { m.realtimeRooms.Set(float64(n)) }

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
