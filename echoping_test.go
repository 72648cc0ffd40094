package echoping

import (
	"context"
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/drgkaleda/go-echoping/config"
	"github.com/drgkaleda/go-echoping/pinger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var target = netip.MustParseAddr("198.51.100.7")

type staticResolver struct {
	addr netip.Addr
	err  error
}

func (r staticResolver) Resolve(context.Context, string) (netip.Addr, error) {
	return r.addr, r.err
}

// replier answers every request unless its sequence is in drop
type replier struct {
	drop    map[uint16]bool
	failOn  int
	sends   int
	pending [][]byte
	closed  bool
	onSend  func()
}

func (r *replier) Send(b []byte, dst netip.Addr) error {
	r.sends++
	if r.onSend != nil {
		r.onSend()
	}
	if r.failOn > 0 && r.sends == r.failOn {
		return errors.New("network is unreachable")
	}

	id := binary.BigEndian.Uint16(b[4:])
	seq := binary.BigEndian.Uint16(b[6:])
	if r.drop[seq] {
		return nil
	}

	msg := pinger.BuildEchoRequest(id, seq, b[pinger.HeaderLen:])
	msg[0], msg[2], msg[3] = 0, 0, 0
	binary.BigEndian.PutUint16(msg[2:], pinger.Checksum(msg))
	r.pending = append(r.pending, append(make([]byte, pinger.EnvelopeLen), msg...))
	return nil
}

func (r *replier) WaitReadable(deadline time.Time) (bool, error) {
	if len(r.pending) > 0 {
		return true, nil
	}
	time.Sleep(time.Until(deadline))
	return false, nil
}

func (r *replier) Receive(max int) ([]byte, netip.Addr, error) {
	data := r.pending[0]
	r.pending = r.pending[1:]
	return data, target, nil
}

func (r *replier) Close() error {
	r.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Host = "example.com"
	cfg.Count = 3
	cfg.Interval = 0
	cfg.Timeout = 50 * time.Millisecond
	return &cfg
}

func newTestEchoPing(t *testing.T, cfg *config.Config, tr Transport) *EchoPing {
	t.Helper()
	ep, err := New(context.Background(), cfg,
		WithResolver(staticResolver{addr: target}),
		WithTransport(tr),
		WithLogger(zaptest.NewLogger(t)),
		WithIdentifier(0x0102))
	require.NoError(t, err)
	return ep
}

type collected struct {
	results []pinger.Result
}

func (c *collected) HandleResult(addr netip.Addr, res pinger.Result) {
	c.results = append(c.results, res)
}

func TestRunAllReplied(t *testing.T) {
	tr := &replier{}
	ep := newTestEchoPing(t, testConfig(), tr)

	var got collected
	sum, err := ep.Run(context.Background(), &got)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Sent)
	assert.Equal(t, 3, sum.Received)
	assert.Zero(t, sum.LossPercent)
	require.Len(t, got.results, 3)
	for i, res := range got.results {
		assert.True(t, res.OK())
		assert.Equal(t, uint16(i+1), res.Seq, "sequence starts at 1")
	}
	assert.Equal(t, target, ep.Addr())
	assert.Equal(t, 64, ep.Size())
}

func TestRunCountsLoss(t *testing.T) {
	tr := &replier{drop: map[uint16]bool{2: true}}
	ep := newTestEchoPing(t, testConfig(), tr)

	sum, err := ep.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Sent)
	assert.Equal(t, 2, sum.Received)
	assert.Equal(t, 1, sum.Lost)
	assert.Equal(t, 33, sum.LossPercent)
	assert.Equal(t, 3, tr.sends, "lost probe is not re-sent")
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Count = 10
	ep := newTestEchoPing(t, cfg, &replier{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := ResultHandlerFunc(func(netip.Addr, pinger.Result) { cancel() })
	sum, err := ep.Run(ctx, handler)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Received)
}

func TestRunFinishesProbeInFlightOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.Count = 10
	ep := newTestEchoPing(t, cfg, &replier{onSend: cancel})

	var results []pinger.Result
	handler := ResultHandlerFunc(func(_ netip.Addr, res pinger.Result) {
		results = append(results, res)
	})
	sum, err := ep.Run(ctx, handler)

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Received)
}

func TestRunTransportErrorEndsSession(t *testing.T) {
	tr := &replier{failOn: 2}
	ep := newTestEchoPing(t, testConfig(), tr)

	sum, err := ep.Run(context.Background(), nil)

	assert.Error(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 2, tr.sends)
}

func TestRunPacesProbes(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 30 * time.Millisecond
	ep := newTestEchoPing(t, cfg, &replier{})

	start := time.Now()
	_, err := ep.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestRunDeadlineBeforeNextSlot(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = time.Hour
	ep := newTestEchoPing(t, cfg, &replier{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sum, err := ep.Run(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, sum.Sent)
}

func TestCloseLeavesInjectedTransportOpen(t *testing.T) {
	tr := &replier{}
	ep := newTestEchoPing(t, testConfig(), tr)

	require.NoError(t, ep.Close())
	assert.False(t, tr.closed)
}

func TestNewResolveFailure(t *testing.T) {
	_, err := New(context.Background(), testConfig(),
		WithResolver(staticResolver{err: ErrHostNotFound}),
		WithTransport(&replier{}))
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestNetResolverLiteral(t *testing.T) {
	r := netResolver{r: nil}
	addr, err := r.Resolve(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), addr)
}

func TestOpenTransportUnknownSocket(t *testing.T) {
	_, err := openTransport("carrier-pigeon")
	assert.Error(t, err)
}
