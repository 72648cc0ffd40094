package echoping

import (
	"context"

	"github.com/drgkaleda/go-echoping/pinger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// probe waits for its slot and sends one request
func (ep *EchoPing) probe(ctx context.Context, limiter *rate.Limiter) (pinger.Result, error) {
	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return pinger.Result{}, ctx.Err()
		}
		// next slot is past ctx deadline
		return pinger.Result{}, context.DeadlineExceeded
	}

	res, err := ep.pinger.Ping(ep.transport, ep.addr, ep.session)
	if err != nil {
		ep.logger.Error("probe failed", zap.Stringer("addr", ep.addr), zap.Error(err))
		return pinger.Result{}, err
	}
	return res, nil
}
