package metrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Snapshot is a point-in-time view of the engine's counters. Messages is the
// count for the period just ended; totals are monotonic since start.
type Snapshot struct {
	At                time.Time `json:"at"`
	Messages          int64     `json:"messages"`
	TotalMessages     int64     `json:"total_messages"`
	TotalPoints       int64     `json:"total_points"`
	DroppedDeliveries int64     `json:"dropped_deliveries"`
	ActiveConnections int       `json:"active_connections"`
	ActiveStreams     int       `json:"active_streams"`
	Subscriptions     int       `json:"subscriptions"`
}

// Gauges supplies the instantaneous counts sampled at each snapshot. The
// engine provides this; a nil func leaves the gauge fields zero.
type Gauges func() (connections, streams, subscriptions int)

// Collector accumulates counters and emits a Snapshot on a fixed cadence.
// All methods are safe for concurrent use and never block; a failure here
// must not affect dispatch or scheduling, so the collector does no I/O
// beyond the optional hook.
type Collector struct {
	period time.Duration
	gauges Gauges
	hook   func(Snapshot)
	log    zerolog.Logger

	periodMessages atomic.Int64
	totalMessages  atomic.Int64
	totalPoints    atomic.Int64
	dropped        atomic.Int64

	reg            *prometheus.Registry
	connGauge      prometheus.Gauge
	streamGauge    prometheus.Gauge
	subGauge       prometheus.Gauge
	pointsCounter  prometheus.Counter
	msgCounter     prometheus.Counter
	droppedCounter prometheus.Counter
}

// Options configures a Collector. Period defaults to one second; Hook may be
// nil.
type Options struct {
	Period time.Duration
	Gauges Gauges
	Hook   func(Snapshot)
	Logger zerolog.Logger
}

// New builds a Collector with its own Prometheus registry.
func New(opts Options) *Collector {
	if opts.Period <= 0 {
		opts.Period = time.Second
	}
	c := &Collector{
		period: opts.Period,
		gauges: opts.Gauges,
		hook:   opts.Hook,
		log:    opts.Logger,
		reg:    prometheus.NewRegistry(),
	}
	c.connGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_active_connections", Help: "Currently registered client connections.",
	})
	c.streamGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_active_streams", Help: "Currently live streams.",
	})
	c.subGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_subscriptions", Help: "Active (connection, stream) subscriptions.",
	})
	c.pointsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_points_total", Help: "Data points appended since start.",
	})
	c.msgCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_messages_total", Help: "Inbound protocol messages processed since start.",
	})
	c.droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_dropped_deliveries_total", Help: "Per-subscriber deliveries dropped (closed or slow sinks).",
	})
	c.reg.MustRegister(c.connGauge, c.streamGauge, c.subGauge, c.pointsCounter, c.msgCounter, c.droppedCounter)
	return c
}

// IncMessages records one processed inbound message.
func (c *Collector) IncMessages() {
	c.periodMessages.Add(1)
	c.totalMessages.Add(1)
	c.msgCounter.Inc()
}

// AddPoints records n appended data points.
func (c *Collector) AddPoints(n int) {
	if n <= 0 {
		return
	}
	c.totalPoints.Add(int64(n))
	c.pointsCounter.Add(float64(n))
}

// IncDropped records one failed per-subscriber delivery.
func (c *Collector) IncDropped() {
	c.dropped.Add(1)
	c.droppedCounter.Inc()
}

// Snapshot samples the counters and gauges without resetting anything.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		At:                time.Now(),
		Messages:          c.periodMessages.Load(),
		TotalMessages:     c.totalMessages.Load(),
		TotalPoints:       c.totalPoints.Load(),
		DroppedDeliveries: c.dropped.Load(),
	}
	if c.gauges != nil {
		s.ActiveConnections, s.ActiveStreams, s.Subscriptions = c.gauges()
	}
	return s
}

// Run emits a snapshot every period, resetting the per-period counters, until
// ctx is cancelled. Gauge mirrors are refreshed on the same cadence.
func (c *Collector) Run(ctx context.Context) {
	t := time.NewTicker(c.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	s := c.Snapshot()
	c.periodMessages.Store(0)
	c.connGauge.Set(float64(s.ActiveConnections))
	c.streamGauge.Set(float64(s.ActiveStreams))
	c.subGauge.Set(float64(s.Subscriptions))
	if c.hook != nil {
		c.hook(s)
	}
	c.log.Trace().
		Int64("messages", s.Messages).
		Int64("points", s.TotalPoints).
		Int("connections", s.ActiveConnections).
		Int("streams", s.ActiveStreams).
		Msg("metrics snapshot")
}

// Handler serves the Prometheus exposition for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
