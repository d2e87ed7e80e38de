package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exports pgxpool statistics to Prometheus at scrape time.
type PoolCollector struct {
	pool *pgxpool.Pool

	totalConns    *prometheus.Desc
	idleConns     *prometheus.Desc
	acquiredConns *prometheus.Desc
	acquireCount  *prometheus.Desc
	acquireWait   *prometheus.Desc
	canceled      *prometheus.Desc
}

func NewPoolCollector(pool *pgxpool.Pool) *PoolCollector {
	return &PoolCollector{
		pool:          pool,
		totalConns:    prometheus.NewDesc("tandem_db_pool_total_conns", "Connections currently in the pool", nil, nil),
		idleConns:     prometheus.NewDesc("tandem_db_pool_idle_conns", "Idle connections in the pool", nil, nil),
		acquiredConns: prometheus.NewDesc("tandem_db_pool_acquired_conns", "Connections currently checked out", nil, nil),
		acquireCount:  prometheus.NewDesc("tandem_db_pool_acquires_total", "Successful connection acquires", nil, nil),
		acquireWait:   prometheus.NewDesc("tandem_db_pool_acquire_seconds_total", "Time spent acquiring connections", nil, nil),
		canceled:      prometheus.NewDesc("tandem_db_pool_canceled_acquires_total", "Acquires cancelled by their context", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.acquireCount
	ch <- c.acquireWait
	ch <- c.canceled
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stats.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stats.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, stats.AcquireDuration().Seconds())
	ch <- prometheus.MustNewConstMetric(c.canceled, prometheus.CounterValue, float64(stats.CanceledAcquireCount()))
}
