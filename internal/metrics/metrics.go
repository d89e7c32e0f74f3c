package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — счётчики бота. Методы учёта можно звать на nil.
type Metrics struct {
	Commands             *prometheus.CounterVec
	ConversationsStarted prometheus.Counter
	ConversationsEnded   *prometheus.CounterVec
	ActiveConversations  prometheus.Gauge
	SendFailures         *prometheus.CounterVec
	PredictionHorizon    prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New регистрирует метрики в reg; nil = собственный реестр.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kingdombot_commands_total",
			Help: "Total number of commands received, labeled by command name",
		}, []string{"command"}),
		ConversationsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "kingdombot_conversations_started_total",
			Help: "Total number of kingdom conversations started",
		}),
		ConversationsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kingdombot_conversations_ended_total",
			Help: "Total number of kingdom conversations ended, labeled by outcome",
		}, []string{"outcome"}),
		ActiveConversations: f.NewGauge(prometheus.GaugeOpts{
			Name: "kingdombot_active_conversations",
			Help: "Current number of conversations waiting for a reply",
		}),
		SendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kingdombot_send_failures_total",
			Help: "Total number of replies the host failed to deliver, labeled by reason",
		}, []string{"reason"}),
		PredictionHorizon: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kingdombot_prediction_horizon_hours",
			Help:    "Hours from now until the most likely opening",
			Buckets: []float64{0, 6, 12, 24, 36, 72, 144, 288, 576},
		}),
		gatherer: reg,
	}
}

// Метки исхода разговора, кроме кодов ошибок.
const (
	OutcomeDone    = "done"
	OutcomeReplace = "replaced"
)

func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(name).Inc()
}

func (m *Metrics) Started() {
	if m == nil {
		return
	}
	m.ConversationsStarted.Inc()
	m.ActiveConversations.Inc()
}

// Ended — разговор закончен: "done", "replaced" или код ошибки.
func (m *Metrics) Ended(outcome string) {
	if m == nil {
		return
	}
	m.ConversationsEnded.WithLabelValues(outcome).Inc()
	m.ActiveConversations.Dec()
}

func (m *Metrics) Predicted(horizon time.Duration) {
	if m == nil {
		return
	}
	m.PredictionHorizon.Observe(horizon.Hours())
}

func (m *Metrics) SendFailed(reason string) {
	if m == nil {
		return
	}
	m.SendFailures.WithLabelValues(reason).Inc()
}

// Handler — /metrics и /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Serve держит HTTP-сервер метрик до отмены ctx.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
