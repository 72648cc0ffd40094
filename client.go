package echoping

import (
	"net/netip"

	"github.com/drgkaleda/go-echoping/pinger"
)

// ResultHandler is notified about every probe outcome, in send order
type ResultHandler interface {
	HandleResult(addr netip.Addr, res pinger.Result)
}

// ResultHandlerFunc adapts a function to ResultHandler
type ResultHandlerFunc func(addr netip.Addr, res pinger.Result)

func (f ResultHandlerFunc) HandleResult(addr netip.Addr, res pinger.Result) {
	f(addr, res)
}
