package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "bimtester"

	ModeIsolated = "isolated"
	ModeAdHoc    = "adhoc"

	RunResultSuccess = "success"
	RunResultError   = "error"

	InjectionApplied = "applied"
	InjectionSkipped = "skipped"
)

var (
	Debug                bool = true
	validModes                = []string{ModeIsolated, ModeAdHoc}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of orchestration runs",
	}, []string{
		"mode",
		"result",
	})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of orchestration runs",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{
		"mode",
	})

	scenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "scenarios_total",
		Help:      "Count of scenarios reported by the engine, by status",
	}, []string{
		"feature",
		"status",
	})

	injectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "injections_total",
		Help:      "Count of scenario files processed by the IFC path injector",
	}, []string{
		"result",
	})

	engineExitCode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "engine_exit_code",
		Help:      "Exit code of the last engine invocation",
	}, []string{
		"mode",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordRun(mode string, result string, duration time.Duration) {
	if !slices.Contains(validModes, mode) {
		log.Error("RecordRun - invalid mode", "mode", mode)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "runs_total",
			"mode", mode,
			"result", result,
			"duration", duration)
	}
	runsTotal.WithLabelValues(mode, result).Inc()
	runDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordScenario(feature string, status string) {
	scenariosTotal.WithLabelValues(feature, status).Inc()
}

func RecordInjection(result string) {
	injectionsTotal.WithLabelValues(result).Inc()
}

func RecordEngineExit(mode string, code int) {
	engineExitCode.WithLabelValues(mode).Set(float64(code))
}
