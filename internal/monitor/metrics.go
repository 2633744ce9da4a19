package monitor

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// 命令指标
	CommandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instrument_commands_total",
			Help: "发送的命令总数",
		},
		[]string{"instrument", "kind"},
	)

	CommandErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instrument_command_errors_total",
			Help: "命令执行错误数",
		},
		[]string{"instrument"},
	)

	// 延迟指标
	RoundTripDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instrument_round_trip_duration_seconds",
			Help:    "命令往返耗时",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"instrument"},
	)

	// 数据指标
	BytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "instrument_bytes_sent_total",
		Help: "发送的二进制字节总数",
	})

	BytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "instrument_bytes_received_total",
		Help: "接收的二进制字节总数",
	})

	WaveformTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instrument_waveform_transfers_total",
			Help: "波形传输次数",
		},
		[]string{"instrument", "direction"},
	)

	// 模拟器连接指标
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instrument_simulator_active_connections",
		Help: "模拟器当前活跃连接数",
	})

	TotalConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "instrument_simulator_total_connections",
		Help: "模拟器总连接数",
	})

	// Goroutine指标
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instrument_goroutines",
		Help: "当前Goroutine数量",
	})

	// 内存指标
	MemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instrument_memory_usage_bytes",
		Help: "内存使用量",
	})
)

var registerOnce sync.Once

type Monitor struct {
	log *logrus.Logger
}

func NewMonitor(log *logrus.Logger) *Monitor {
	// 注册指标
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CommandsSent,
			CommandErrors,
			RoundTripDuration,
			BytesSent,
			BytesReceived,
			WaveformTransfers,
			ActiveConnections,
			TotalConnections,
			GoroutineCount,
			MemoryUsage,
		)
	})

	return &Monitor{log: log}
}

// ObserveCommand 记录一次命令往返
func ObserveCommand(instrument, kind string, start time.Time, err error) {
	CommandsSent.WithLabelValues(instrument, kind).Inc()
	RoundTripDuration.WithLabelValues(instrument).Observe(time.Since(start).Seconds())
	if err != nil {
		CommandErrors.WithLabelValues(instrument).Inc()
	}
}

// StartMetricsServer 启动Metrics HTTP服务器
func (m *Monitor) StartMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	m.log.Infof("Metrics服务器启动: %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.log.Errorf("Metrics服务器错误: %v", err)
		}
	}()
}

// StartRuntimeMonitor 启动运行时监控
func (m *Monitor) StartRuntimeMonitor() {
	ticker := time.NewTicker(10 * time.Second)

	go func() {
		for range ticker.C {
			GoroutineCount.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			MemoryUsage.Set(float64(memStats.Alloc))

			m.log.Debugf("Goroutines: %d, 内存: %.2f MB",
				runtime.NumGoroutine(),
				float64(memStats.Alloc)/1024/1024,
			)
		}
	}()
}
