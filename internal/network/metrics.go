package network

import "github.com/prometheus/client_golang/prometheus"

// Метрики сетевой подсистемы. Регистрация в init(), чтобы несколько
// серверов в тестах не падали на повторной регистрации.
var (
	metricActiveConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "network",
		Name:      "active_connections",
		Help:      "Число активных клиентских соединений по транспортам.",
	}, []string{"transport"})

	metricFramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "frames_received_total",
		Help:      "Принятые кадры по типам сообщений.",
	}, []string{"type"})

	metricFramesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "frames_sent_total",
		Help:      "Отправленные клиентам кадры.",
	})

	metricFramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "frames_dropped_total",
		Help:      "Кадры, отброшенные из-за медленных потребителей.",
	})

	metricAuthFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "auth_failures_total",
		Help:      "Неудачные попытки аутентификации.",
	})

	metricInvalidInputs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "network",
		Name:      "invalid_inputs_total",
		Help:      "Отклонённые некорректные intent'ы (NaN, Inf, мусор).",
	})
)

func init() {
	prometheus.MustRegister(
		metricActiveConnections,
		metricFramesReceived,
		metricFramesSent,
		metricFramesDropped,
		metricAuthFailures,
		metricInvalidInputs,
	)
}
