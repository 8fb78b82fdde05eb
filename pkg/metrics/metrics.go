package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of requests",
		},
		[]string{"service", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)

	// 对象存储调用指标
	StoreCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "object_store_calls_total",
			Help: "Total number of object store calls",
		},
		[]string{"operation", "status"},
	)

	GrantsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presigned_grants_issued_total",
			Help: "Total number of presigned URLs issued",
		},
		[]string{"method"},
	)

	PresignRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "presign_retries_total",
			Help: "Presign attempts retried after a transient store fault",
		},
	)

	FallbackStreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_streams_total",
			Help: "Downloads served by backend streaming instead of redirect",
		},
		[]string{"intent"},
	)

	// 消息队列指标
	KafkaMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_total",
			Help: "Total number of Kafka messages",
		},
		[]string{"service", "topic", "status"},
	)

	// 业务指标
	MaterialsReserved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "materials_reserved_total",
			Help: "Total number of pending material reservations created",
		},
	)

	MaterialsConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "materials_confirmed_total",
			Help: "Total number of materials confirmed against the store",
		},
	)

	OrphansReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orphans_reclaimed_total",
			Help: "Pending reservations removed by the sweep",
		},
	)

	PendingReservations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_reservations",
			Help: "Reservations currently awaiting confirmation",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StoreCallsTotal,
		GrantsIssuedTotal,
		PresignRetriesTotal,
		FallbackStreamsTotal,
		KafkaMessagesTotal,
		MaterialsReserved,
		MaterialsConfirmed,
		OrphansReclaimed,
		PendingReservations,
	)
}

// StartMetricsServer 启动独立的 metrics HTTP 服务器
func StartMetricsServer(port string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":"+port, nil); err != nil {
			panic("failed to start metrics server: " + err.Error())
		}
	}()
}

// RecordRequest 记录请求指标的助手函数
func RecordRequest(service, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(service, method, status).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}
