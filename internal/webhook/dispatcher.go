package webhook

import (
	"context"
	"errors"

	"github.com/panjf2000/ants/v2"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// Handler processes one enhanced transaction.
type Handler func(ctx context.Context, tx gjson.Result)

// Dispatcher runs handlers on a bounded worker pool so deliveries return fast.
type Dispatcher struct {
	ctx     context.Context
	pool    *ants.Pool
	handler Handler
}

// NewDispatcher creates a dispatcher whose handlers run under ctx.
func NewDispatcher(ctx context.Context, poolSize int, handler Handler) (*Dispatcher, error) {
	if poolSize <= 0 {
		poolSize = 64
	}
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(p any) {
		monitor.IncError("live_handler")
		logger.Error().Interface("panic", p).Msg("live handler panicked")
	}))
	if err != nil {
		return nil, err
	}
	return &Dispatcher{ctx: ctx, pool: pool, handler: handler}, nil
}

// Dispatch queues tx for the handler, blocking while every worker is busy.
func (d *Dispatcher) Dispatch(tx gjson.Result) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	err := d.pool.Submit(func() {
		d.handler(d.ctx, tx)
	})
	if err != nil {
		monitor.IncLiveEvent("dropped")
		if errors.Is(err, ants.ErrPoolClosed) {
			return err
		}
		logger.Warn().Err(err).Msg("live event dropped")
	}
	return err
}

func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Release waits for queued handlers to finish, up to the pool's timeout.
func (d *Dispatcher) Release() {
	if err := d.pool.ReleaseTimeout(defaultReleaseTimeout); err != nil {
		logger.Warn().Err(err).Msg("release live pool timed out")
	}
}
