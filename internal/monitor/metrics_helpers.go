package monitor

import "github.com/utrading/utrading-sol-agent/internal/models"

// 便捷函数供外部调用，无需访问 Metrics 实例

func SetTierCounts(counts map[models.Tier]int64) { GetMetrics().SetTierCounts(counts) }
func SetWebhookAddresses(n int) { GetMetrics().SetWebhookAddresses(n) }
func SetNATSConnected(v bool) { GetMetrics().SetNATSConnected(v) }
func SetStreamConnected(v bool) { GetMetrics().SetStreamConnected(v) }
func IncTradeProcessed(path string) { GetMetrics().IncTradeProcessed(path) }
func IncError(component string) { GetMetrics().IncError(component) }
func IncLiveEvent(result string) { GetMetrics().IncLiveEvent(result) }
func IncWebhookSync(action string) { GetMetrics().IncWebhookSync(action) }
func IncClusters(n int) { GetMetrics().IncClusters(n) }
func IncExiled(reason string, n int) { GetMetrics().IncExiled(reason, n) }
func IncDiscovered(source string) { GetMetrics().IncDiscovered(source) }
func IncAlert(kind string, ok bool) { GetMetrics().IncAlert(kind, ok) }
func IncUpstream(service, op, status string) { GetMetrics().IncUpstream(service, op, status) }
func ObserveLoop(loop string, seconds float64) { GetMetrics().ObserveLoop(loop, seconds) }
func IncCacheHit(cacheType string) { GetMetrics().IncCacheHit(cacheType) }
func IncCacheMiss(cacheType string) { GetMetrics().IncCacheMiss(cacheType) }
func SetWriteQueueSize(size int) { GetMetrics().SetWriteQueueSize(size) }
func IncWriteQueueFull() { GetMetrics().IncWriteQueueFull() }
func ObserveBatchWriteSize(size int) { GetMetrics().ObserveBatchWriteSize(size) }
func ObserveBatchWriteDuration(seconds float64) { GetMetrics().ObserveBatchWriteDuration(seconds) }
