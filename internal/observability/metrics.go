package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op. Components take it optionally.
type Metrics struct {
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	pairingsTotal    prometheus.Counter
	disconnectsTotal *prometheus.CounterVec
	relayedTotal     *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	dbQueryDuration  *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	panicsTotal      prometheus.Counter
	registerer       prometheus.Registerer
	gatherer         prometheus.Gatherer
	logger           *zap.Logger
}

func NewMetrics(logger *zap.Logger, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tandem_commands_total",
				Help: "Inbound updates handled, by command or content kind",
			},
			[]string{"command"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tandem_command_duration_seconds",
				Help:    "Time spent handling one inbound update",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"command"},
		),
		pairingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tandem_pairings_total",
				Help: "Pairings formed by the matchmaker",
			},
		),
		disconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tandem_disconnects_total",
				Help: "Pairings dissolved, by the command that dissolved them",
			},
			[]string{"reason"},
		),
		relayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tandem_relayed_total",
				Help: "Content items relayed to a partner, by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		deliveryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tandem_delivery_failures_total",
				Help: "Transport deliveries that failed, by operation",
			},
			[]string{"op"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tandem_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_type"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tandem_cache_hits_total",
				Help: "Cache lookups by cache and outcome",
			},
			[]string{"cache_type", "status"},
		),
		panicsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tandem_handler_panics_total",
				Help: "Panics recovered while handling inbound updates",
			},
		),
		registerer: reg,
		gatherer:   reg,
		logger:     logger,
	}

	reg.MustRegister(
		m.commandsTotal,
		m.commandDuration,
		m.pairingsTotal,
		m.disconnectsTotal,
		m.relayedTotal,
		m.deliveryFailures,
		m.dbQueryDuration,
		m.cacheHits,
		m.panicsTotal,
	)

	return m
}

// SessionGauges exposes the live queue length and pairing count. The
// functions are evaluated at scrape time.
type SessionGauges interface {
	QueueLen() int
	PairCount() int
}

func (m *Metrics) RegisterSessionGauges(src SessionGauges) {
	if m == nil {
		return
	}
	m.registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tandem_waiting_participants",
			Help: "Participants currently in the waiting queue",
		}, func() float64 { return float64(src.QueueLen()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tandem_active_pairings",
			Help: "Pairings currently active",
		}, func() float64 { return float64(src.PairCount()) }),
	)
}

func (m *Metrics) RecordCommand(command string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func (m *Metrics) RecordPairing() {
	if m == nil {
		return
	}
	m.pairingsTotal.Inc()
}

func (m *Metrics) RecordDisconnect(reason string) {
	if m == nil {
		return
	}
	m.disconnectsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRelay(kind string, delivered bool) {
	if m == nil {
		return
	}
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	m.relayedTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordDeliveryFailure(op string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordDBQuery(queryType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit(cacheType string, hit bool) {
	if m == nil {
		return
	}
	status := "hit"
	if !hit {
		status = "miss"
	}
	m.cacheHits.WithLabelValues(cacheType, status).Inc()
}

func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.panicsTotal.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Registry: m.registerer})
}

func (m *Metrics) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.logger.Info("metrics server starting", zap.Int("port", port))

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
