package echoping

import (
	"github.com/drgkaleda/go-echoping/pingdata"
	"github.com/drgkaleda/go-echoping/pinger"
	"go.uber.org/zap"
)

func (ep *EchoPing) record(stats *pingdata.Stats, h ResultHandler, res pinger.Result) {
	stats.Record(res)

	ep.logger.Debug("probe done",
		zap.Uint16("seq", res.Seq),
		zap.Stringer("status", res.Status),
		zap.Duration("rtt", res.RTT))

	if h != nil {
		h.HandleResult(ep.addr, res)
	}
}
