package monitor

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// connection metrics
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instrument_active_connections",
		Help: "Currently active client connections",
	})

	TotalConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "instrument_total_connections",
		Help: "Total client connections accepted",
	})

	BytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "instrument_bytes_received_total",
		Help: "Raw bytes received from all transports",
	})

	// command metrics
	CommandsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "instrument_commands_processed_total",
		Help: "Commands executed successfully",
	})

	CommandErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instrument_command_errors_total",
			Help: "Commands that pushed an error, by queue code",
		},
		[]string{"code"},
	)

	// measurement metrics
	MeasurementsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instrument_measurements_completed_total",
			Help: "Completed readings and acquisitions, by instrument",
		},
		[]string{"instrument"},
	)

	AcquisitionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "instrument_acquisition_duration_seconds",
		Help:    "Wall time from initiate to retrieved data",
		Buckets: prometheus.DefBuckets,
	})

	// runtime metrics
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instrument_goroutines",
		Help: "Current goroutine count",
	})

	MemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instrument_memory_usage_bytes",
		Help: "Allocated heap bytes",
	})
)

type Monitor struct {
	log *logrus.Logger
}

func NewMonitor(log *logrus.Logger) *Monitor {
	prometheus.MustRegister(
		ActiveConnections,
		TotalConnections,
		BytesReceived,
		CommandsProcessed,
		CommandErrors,
		MeasurementsCompleted,
		AcquisitionDuration,
		GoroutineCount,
		MemoryUsage,
	)

	return &Monitor{log: log}
}

// StartMetricsServer serves /metrics and /health on the given port.
func (m *Monitor) StartMetricsServer(port int) {
	http.Handle("/metrics", promhttp.Handler())

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	m.log.Infof("metrics server listening on %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			m.log.Errorf("metrics server: %v", err)
		}
	}()
}

// StartRuntimeMonitor samples goroutine and heap figures every 10 s.
func (m *Monitor) StartRuntimeMonitor() {
	ticker := time.NewTicker(10 * time.Second)

	go func() {
		for range ticker.C {
			GoroutineCount.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			MemoryUsage.Set(float64(memStats.Alloc))

			m.log.Debugf("goroutines: %d, heap: %.2f MB",
				runtime.NumGoroutine(),
				float64(memStats.Alloc)/1024/1024,
			)
		}
	}()
}
