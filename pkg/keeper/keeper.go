// Package keeper drives settlement the way an automation network would:
// poll the resolver's read-only view every interval and submit the returned
// batch to the processor when it is executable. The keeper owns no
// correctness logic; a stale or lost-race batch simply fails processing and
// is retried on a later poll.
package keeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shenwilly/opyn-auto/pkg/settle"
	"github.com/shenwilly/opyn-auto/pkg/util"
)

type Keeper struct {
	resolver  *settle.Resolver
	processor *settle.Processor
	params    *settle.Params
	clock     util.Clock
	interval  time.Duration
	log       *zap.SugaredLogger
}

func New(resolver *settle.Resolver, processor *settle.Processor, params *settle.Params, clock util.Clock, interval time.Duration, log *zap.SugaredLogger) *Keeper {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Keeper{
		resolver:  resolver,
		processor: processor,
		params:    params,
		clock:     clock,
		interval:  interval,
		log:       log,
	}
}

// Run polls until the context is cancelled.
func (k *Keeper) Run(ctx context.Context) {
	k.log.Infow("keeper_started", "interval_ms", k.interval.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			k.log.Info("keeper_stopped")
			return
		case <-k.clock.After(k.interval):
			k.Poll()
		}
	}
}

// Poll performs one resolve-and-execute round. Exported so tests and manual
// triggers can step the keeper without a running loop.
func (k *Keeper) Poll() {
	if !k.params.AutomatorEnabled() {
		return
	}
	batch := k.resolver.ProcessableOrders()
	if !batch.CanExec {
		return
	}

	if err := k.processor.ProcessOrders(batch.OrderIDs, batch.Swaps); err != nil {
		// Expected under keeper races or state moving between resolution
		// and execution; the next poll re-resolves from scratch.
		k.log.Warnw("batch_failed", "order_ids", batch.OrderIDs, "err", err)
		return
	}
	k.log.Infow("batch_processed", "order_ids", batch.OrderIDs)
}
