package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

// Metrics 指标收集器
type Metrics struct {
	walletsByTier    *prometheus.GaugeVec
	webhookAddresses prometheus.Gauge
	natsConnected    prometheus.Gauge
	streamConnected  prometheus.Gauge

	tradesProcessed  *prometheus.CounterVec
	alertsSent       *prometheus.CounterVec
	errors           *prometheus.CounterVec
	liveEvents       *prometheus.CounterVec
	webhookSyncs     *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	clustersDetected prometheus.Counter
	walletsExiled    *prometheus.CounterVec
	walletsFound     *prometheus.CounterVec

	loopDuration *prometheus.HistogramVec

	// 缓存
	cacheHitTotal  *prometheus.CounterVec
	cacheMissTotal *prometheus.CounterVec

	// 批量写入
	writeQueueSize         prometheus.Gauge
	writeQueueFullTotal    prometheus.Counter
	batchWriteSize         prometheus.Histogram
	batchWriteDurationSecs prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		walletsByTier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallets",
			Help:      "Tracked wallets by tier",
		}, []string{"tier"}),
		webhookAddresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "webhook_addresses",
			Help:      "Addresses registered for live delivery",
		}),
		natsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nats_connected",
			Help:      "NATS connection status (1=connected, 0=disconnected)",
		}),
		streamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "Websocket stream status (1=connected, 0=disconnected)",
		}),
		tradesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_processed_total",
			Help:      "Trades normalized, by path",
		}, []string{"path"}), // live, scoring
		alertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts attempted, by kind and outcome",
		}, []string{"kind", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Per-item failures, by component",
		}, []string{"component"}),
		liveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_events_total",
			Help:      "Inbound live events, by outcome",
		}, []string{"result"}),
		webhookSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_sync_total",
			Help:      "Webhook sync cycles, by action",
		}, []string{"action"}), // skip, create, edit, error
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to upstream APIs",
		}, []string{"service", "op", "status"}),
		clustersDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_detected_total",
			Help:      "Bot clusters found by the scoring loop",
		}),
		walletsExiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallets_exiled_total",
			Help:      "Wallets moved to exiled, by reason",
		}, []string{"reason"}), // score, cluster
		walletsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallets_discovered_total",
			Help:      "New candidate wallets, by source",
		}, []string{"source"}),
		loopDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loop_duration_seconds",
			Help:      "Duration of one loop iteration",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"loop"}),
		cacheHitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hit_total",
			Help:      "Cache hits by cache",
		}, []string{"cache_type"}),
		cacheMissTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_miss_total",
			Help:      "Cache misses by cache",
		}, []string{"cache_type"}),
		writeQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "write_queue_size",
			Help:      "Trades waiting for the batch writer",
		}),
		writeQueueFullTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_queue_full_total",
			Help:      "Trades rejected because the write queue was full",
		}),
		batchWriteSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_write_size",
			Help:      "Trades per batch write",
			Buckets:   []float64{1, 10, 25, 50, 100, 200, 500},
		}),
		batchWriteDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_write_duration_seconds",
			Help:      "Batch write latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}

	prometheus.MustRegister(
		m.walletsByTier,
		m.webhookAddresses,
		m.natsConnected,
		m.streamConnected,
		m.tradesProcessed,
		m.alertsSent,
		m.errors,
		m.liveEvents,
		m.webhookSyncs,
		m.upstreamRequests,
		m.clustersDetected,
		m.walletsExiled,
		m.walletsFound,
		m.loopDuration,
		m.cacheHitTotal,
		m.cacheMissTotal,
		m.writeQueueSize,
		m.writeQueueFullTotal,
		m.batchWriteSize,
		m.batchWriteDurationSecs,
	)

	return m
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

func (m *Metrics) SetTierCounts(counts map[models.Tier]int64) {
	for tier, n := range counts {
		m.walletsByTier.WithLabelValues(string(tier)).Set(float64(n))
	}
}

func (m *Metrics) SetWebhookAddresses(n int) { m.webhookAddresses.Set(float64(n)) }
func (m *Metrics) SetNATSConnected(v bool) { boolGauge(m.natsConnected, v) }
func (m *Metrics) SetStreamConnected(v bool) { boolGauge(m.streamConnected, v) }
func (m *Metrics) IncTradeProcessed(path string) { m.tradesProcessed.WithLabelValues(path).Inc() }
func (m *Metrics) IncError(component string) { m.errors.WithLabelValues(component).Inc() }
func (m *Metrics) IncLiveEvent(result string) { m.liveEvents.WithLabelValues(result).Inc() }
func (m *Metrics) IncWebhookSync(action string) { m.webhookSyncs.WithLabelValues(action).Inc() }
func (m *Metrics) IncClusters(n int) { m.clustersDetected.Add(float64(n)) }
func (m *Metrics) IncExiled(reason string, n int) {
	m.walletsExiled.WithLabelValues(reason).Add(float64(n))
}
func (m *Metrics) IncDiscovered(source string) { m.walletsFound.WithLabelValues(source).Inc() }

func (m *Metrics) IncAlert(kind string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.alertsSent.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) IncUpstream(service, op, status string) {
	m.upstreamRequests.WithLabelValues(service, op, status).Inc()
}

func (m *Metrics) ObserveLoop(loop string, seconds float64) {
	m.loopDuration.WithLabelValues(loop).Observe(seconds)
}

func (m *Metrics) IncCacheHit(cacheType string) { m.cacheHitTotal.WithLabelValues(cacheType).Inc() }
func (m *Metrics) IncCacheMiss(cacheType string) { m.cacheMissTotal.WithLabelValues(cacheType).Inc() }

func (m *Metrics) SetWriteQueueSize(size int) { m.writeQueueSize.Set(float64(size)) }
func (m *Metrics) IncWriteQueueFull() { m.writeQueueFullTotal.Inc() }
func (m *Metrics) ObserveBatchWriteSize(size int) { m.batchWriteSize.Observe(float64(size)) }
func (m *Metrics) ObserveBatchWriteDuration(seconds float64) { m.batchWriteDurationSecs.Observe(seconds) }

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics 获取全局指标收集器
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("sol_agent")
	})
	return globalMetrics
}

func InitMetrics() {
	GetMetrics()
}
