package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifications_total",
			Help: "Total number of resolved join verifications",
		},
		[]string{"outcome"},
	)

	challengeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "challenge_duration_seconds",
			Help:    "Time between challenge creation and resolution",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Init registers metrics, installs the tracer provider and serves
// /metrics on addr.
func Init(ctx context.Context, addr string) error {
	prometheus.MustRegister(verificationsTotal)
	prometheus.MustRegister(challengeDuration)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// RecordVerificationOutcome counts one resolved verification.
func RecordVerificationOutcome(outcome string) {
	verificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveChallengeDuration records how long a challenge stayed open.
func ObserveChallengeDuration(d time.Duration) {
	challengeDuration.Observe(d.Seconds())
}
