package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/concurrent"
	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// BatchItem 批量写入项接口
type BatchItem interface {
	TableName() string
	DedupKey() string // 返回去重键
}

// TradeItem is one live trade waiting to be inserted.
type TradeItem struct {
	Trade *models.Trade
}

func (i TradeItem) TableName() string {
	return models.Trade{}.TableName()
}

// DedupKey 基于交易签名
func (i TradeItem) DedupKey() string {
	return "tr:" + i.Trade.Signature
}

// TradeStore persists a batch and ignores signatures already stored.
type TradeStore interface {
	InsertTrades(ctx context.Context, trades []*models.Trade) (int64, error)
}

// BatchWriterConfig 批量写入配置
type BatchWriterConfig struct {
	BatchSize     int           // 批量大小（默认 100）
	FlushInterval time.Duration // 刷新间隔（默认 2s）
	MaxQueueSize  int           // 最大队列大小（默认 10000）
	WriteTimeout  time.Duration // 单次写库超时（默认 10s）
}

// BatchWriter 批量写入器
// 将数据库写入操作批量执行，降低 IO 压力
type BatchWriter struct {
	config    *BatchWriterConfig
	store     TradeStore
	queue     chan BatchItem
	buffers   concurrent.Map[string, BatchItem] // 按 dedupKey 去重
	flushMu   sync.Mutex
	flushTick *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
	wg        *goplus.WaitGroup
}

func NewBatchWriter(store TradeStore, config *BatchWriterConfig) *BatchWriter {
	if config == nil {
		config = &BatchWriterConfig{}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 2 * time.Second
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 10000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	return &BatchWriter{
		config:  config,
		store:   store,
		queue:   make(chan BatchItem, config.MaxQueueSize),
		buffers: concurrent.Map[string, BatchItem]{},
		done:    make(chan struct{}),
		wg:      goplus.NewWaitGroup(),
	}
}

// Start 启动接收与定时刷新协程
func (w *BatchWriter) Start() {
	w.flushTick = time.NewTicker(w.config.FlushInterval)
	w.wg.GoNamed("batch_writer.receive", w.receiveLoop)
	w.wg.GoNamed("batch_writer.flush", w.flushLoop)
}

func (w *BatchWriter) receiveLoop() {
	for {
		select {
		case item := <-w.queue:
			monitor.SetWriteQueueSize(len(w.queue))
			w.buffers.Store(item.DedupKey(), item)

			if w.buffers.Len() >= int64(w.config.BatchSize) {
				w.flushAll()
			}
		case <-w.done:
			// 处理队列中剩余的数据
			for len(w.queue) > 0 {
				item := <-w.queue
				w.buffers.Store(item.DedupKey(), item)
			}
			monitor.SetWriteQueueSize(0)
			return
		}
	}
}

func (w *BatchWriter) flushLoop() {
	for {
		select {
		case <-w.flushTick.C:
			w.flushAll()
		case <-w.done:
			return
		}
	}
}

// flushAll drains the buffer into one insert per table.
func (w *BatchWriter) flushAll() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if w.buffers.Len() == 0 {
		return
	}

	var trades []*models.Trade
	for key, item := range w.buffers.All() {
		w.buffers.Delete(key)
		if ti, ok := item.(TradeItem); ok && ti.Trade != nil {
			trades = append(trades, ti.Trade)
			continue
		}
		logger.Warn().Str("table", item.TableName()).Msg("unsupported table for batch write")
	}
	if len(trades) == 0 {
		return
	}

	models.SortByTime(trades)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	n, err := w.store.InsertTrades(ctx, trades)
	monitor.ObserveBatchWriteDuration(time.Since(start).Seconds())
	monitor.ObserveBatchWriteSize(len(trades))

	if err != nil {
		monitor.IncError("batch_writer")
		logger.Error().Err(err).Int("count", len(trades)).Msg("batch insert trades failed")
		return
	}
	logger.Debug().Int("count", len(trades)).Int64("inserted", n).Msg("batch insert trades")
}

// Add 非阻塞入队，队列满返回 ErrQueueFull
func (w *BatchWriter) Add(item BatchItem) error {
	select {
	case <-w.done:
		return ErrWriterStopped
	default:
	}

	select {
	case w.queue <- item:
		return nil
	default:
		monitor.IncWriteQueueFull()
		return ErrQueueFull
	}
}

// Pending reports buffered plus queued items.
func (w *BatchWriter) Pending() int {
	return int(w.buffers.Len()) + len(w.queue)
}

// Stop 停止写入器，刷新剩余数据
func (w *BatchWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.flushAll()

		if w.flushTick != nil {
			w.flushTick.Stop()
		}
	})
}

// GracefulShutdown 优雅关闭，带超时控制
func (w *BatchWriter) GracefulShutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		logger.Warn().Dur("timeout", timeout).Int("pending", w.Pending()).Msg("batch writer shutdown timeout")
		return ErrShutdownTimeout
	}
}

var (
	ErrQueueFull       = errors.New("write queue full")
	ErrWriterStopped   = errors.New("batch writer stopped")
	ErrShutdownTimeout = errors.New("shutdown timeout")
)
