// Package telemetry exports probe engine events as Prometheus metrics
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/drgkaleda/go-echoping/pinger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "echoping"

var _ pinger.Observer = (*Metrics)(nil)

// Metrics counts probe engine events of one target
type Metrics struct {
	sent      prometheus.Counter
	received  prometheus.Counter
	timeouts  prometheus.Counter
	discarded *prometheus.CounterVec
	rtt       prometheus.Histogram
}

// New creates metrics labelled with target host and registers them on reg
func New(reg prometheus.Registerer, host string) (*Metrics, error) {
	labels := prometheus.Labels{"host": host}
	m := &Metrics{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_sent_total",
			Help:        "Echo requests sent.",
			ConstLabels: labels,
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "replies_received_total",
			Help:        "Matching echo replies received.",
			ConstLabels: labels,
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "timeouts_total",
			Help:        "Probes that got no matching reply before deadline.",
			ConstLabels: labels,
		}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "datagrams_discarded_total",
			Help:        "Received datagrams that did not answer the outstanding request.",
			ConstLabels: labels,
		}, []string{"reason"}),
		rtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "rtt_seconds",
			Help:        "Round trip time of replied probes.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}

	for _, c := range []prometheus.Collector{m.sent, m.received, m.timeouts, m.discarded, m.rtt} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Sent() {
	m.sent.Inc()
}

func (m *Metrics) Received(rtt time.Duration) {
	m.received.Inc()
	m.rtt.Observe(rtt.Seconds())
}

func (m *Metrics) TimedOut() {
	m.timeouts.Inc()
}

func (m *Metrics) Discarded(reason string) {
	m.discarded.WithLabelValues(reason).Inc()
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
