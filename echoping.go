package echoping

/**
 *  EchoPing measures round trip time to a single IPv4 host, one probe at a time.
 *
 *  Every probe is fully resolved (reply or timeout) before the next one is sent.
 *  The caller decides how many probes to send and may stop the run between
 *  probes by cancelling the context; statistics of everything sent so far are
 *  still returned.
 **/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/drgkaleda/go-echoping/config"
	"github.com/drgkaleda/go-echoping/pingdata"
	"github.com/drgkaleda/go-echoping/pinger"
	"github.com/drgkaleda/go-echoping/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrHostNotFound is returned when target host can not be resolved to IPv4
var ErrHostNotFound = errors.New("host does not exist")

// Transport is a pinger transport owned by EchoPing
type Transport interface {
	pinger.Transport
	io.Closer
}

// Resolver turns host name into IPv4 address
type Resolver interface {
	Resolve(ctx context.Context, host string) (netip.Addr, error)
}

type netResolver struct {
	r *net.Resolver
}

func (n netResolver) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	addrs, err := n.r.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %s: %v", ErrHostNotFound, host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: %s", ErrHostNotFound, host)
	}
	return addrs[0].Unmap(), nil
}

type EchoPing struct {
	// Count is number of probes Run sends
	Count int

	// Interval between starts of two consecutive probes
	Interval time.Duration

	host      string
	addr      netip.Addr
	transport Transport
	ownsConn  bool // transport opened by New and closed by Close
	session   *pinger.Session
	pinger    *pinger.Pinger
	logger    *zap.Logger
}

type options struct {
	resolver  Resolver
	transport Transport
	logger    *zap.Logger
	observer  pinger.Observer
	id        uint16
}

// Option customizes New
type Option func(*options)

// WithResolver replaces DNS resolver
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithTransport makes EchoPing use t instead of opening a socket.
// The caller keeps ownership of t.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger sets logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets probe engine observer, e.g. telemetry.Metrics
func WithObserver(obs pinger.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithIdentifier sets echo identifier. Defaults to process id.
func WithIdentifier(id uint16) Option {
	return func(o *options) { o.id = id }
}

// New resolves cfg.Host and opens transport selected by cfg.Socket
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*EchoPing, error) {
	o := options{
		resolver: netResolver{r: net.DefaultResolver},
		logger:   zap.NewNop(),
		id:       uint16(os.Getpid() & 0xffff),
	}
	for _, opt := range opts {
		opt(&o)
	}

	addr, err := o.resolver.Resolve(ctx, cfg.Host)
	if err != nil {
		return nil, err
	}

	ep := &EchoPing{
		Count:     cfg.Count,
		Interval:  cfg.Interval,
		host:      cfg.Host,
		addr:      addr,
		transport: o.transport,
		session:   pinger.NewSession(o.id, 1),
		logger:    o.logger,
	}

	if ep.transport == nil {
		ep.transport, err = openTransport(cfg.Socket)
		if err != nil {
			return nil, err
		}
		ep.ownsConn = true
	}

	ep.pinger = pinger.NewPinger(o.logger)
	ep.pinger.Timeout = cfg.Timeout
	ep.pinger.Payload = pinger.DefaultPayload(cfg.PayloadSize)
	ep.pinger.StrictIdentifier = cfg.StrictIdentifier
	if o.observer != nil {
		ep.pinger.Observer = o.observer
	}

	if cfg.StrictIdentifier && cfg.Socket == config.SocketUDP && ep.ownsConn {
		o.logger.Warn("strict identifier matching on udp socket, kernel rewrites identifier and replies may be dropped")
	}
	o.logger.Debug("session ready",
		zap.String("host", cfg.Host),
		zap.Stringer("addr", addr),
		zap.String("socket", cfg.Socket),
		zap.Uint16("id", o.id))

	return ep, nil
}

func openTransport(socket string) (Transport, error) {
	switch socket {
	case config.SocketRaw:
		s, err := transport.OpenRawSocket()
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SocketICMP, config.SocketUDP:
		c, err := transport.ListenICMP(socket == config.SocketICMP)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown socket %q", socket)
	}
}

// Host returns target host as configured
func (ep *EchoPing) Host() string {
	return ep.host
}

// Addr returns resolved target address
func (ep *EchoPing) Addr() netip.Addr {
	return ep.addr
}

// Size returns ICMP message size of every request
func (ep *EchoPing) Size() int {
	return ep.pinger.Size()
}

// Run sends Count probes and returns their summary. Cancelling ctx stops the
// run between probes; the summary of already recorded probes is returned
// together with ctx error. Transport errors end the run the same way.
func (ep *EchoPing) Run(ctx context.Context, h ResultHandler) (pingdata.Summary, error) {
	stats := pingdata.New()
	limiter := newLimiter(ep.Interval)

	for i := 0; i < ep.Count; i++ {
		res, err := ep.probe(ctx, limiter)
		if err != nil {
			return stats.Summarize(), err
		}
		ep.record(stats, h, res)
	}

	return stats.Summarize(), nil
}

// Close releases transport if EchoPing opened it
func (ep *EchoPing) Close() error {
	var err error
	if ep.ownsConn && ep.transport != nil {
		err = multierr.Append(err, ep.transport.Close())
	}
	ep.transport = nil
	return err
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
