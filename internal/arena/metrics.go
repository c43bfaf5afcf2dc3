package arena

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus-метрики симуляции. Регистрируются один раз при загрузке
// пакета, чтобы несколько миров (в тестах) не конфликтовали в регистре.
var (
	metricTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "ticks_total",
		Help:      "Общее число обработанных тиков симуляции.",
	})
	metricTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arena",
		Name:      "tick_duration_seconds",
		Help:      "Длительность обработки одного тика.",
		Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	})
	metricPlayersOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "players_online",
		Help:      "Количество игроков в реестре.",
	})
	metricBulletsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "bullets_live",
		Help:      "Количество живых снарядов после фазы удаления.",
	})
	metricKillsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "kills_total",
		Help:      "Общее число фрагов.",
	})
	metricEntityFaults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "entity_faults_total",
		Help:      "Сущности, аварийно удалённые после panic в update.",
	})
)

func init() {
	prometheus.MustRegister(
		metricTicksTotal,
		metricTickDuration,
		metricPlayersOnline,
		metricBulletsLive,
		metricKillsTotal,
		metricEntityFaults,
	)
}
