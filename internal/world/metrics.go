package world

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics инкапсулирует Prometheus-метрики планировщика одного мира.
// Счётчики обновляются из потока симуляции в конце каждого тика.
//
// Метрики:
// * world_cubes_generated_total — counter
// * world_messages_sent_total — counter
// * world_cube_generate_queue / world_cube_send_queue — gauge
// * world_column_generate_queue / world_column_send_queue — gauge
// * world_cube_watchers / world_column_watchers — gauge
// * world_tick_duration_seconds — histogram
type Metrics struct {
	CubesGenerated prometheus.Counter
	MessagesSent   prometheus.Counter

	CubeGenerateQueue   prometheus.Gauge
	CubeSendQueue       prometheus.Gauge
	ColumnGenerateQueue prometheus.Gauge
	ColumnSendQueue     prometheus.Gauge

	CubeWatchers   prometheus.Gauge
	ColumnWatchers prometheus.Gauge

	TickDuration prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в переданном регистре.
// nil-регистр означает дефолтный регистр Prometheus.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CubesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "cubes_generated_total",
			Help:      "Общее число сгенерированных кубов.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "messages_sent_total",
			Help:      "Общее число сообщений, переданных транспорту.",
		}),
		CubeGenerateQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "cube_generate_queue",
			Help:      "Длина очереди генерации кубов.",
		}),
		CubeSendQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "cube_send_queue",
			Help:      "Длина очереди отправки кубов.",
		}),
		ColumnGenerateQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "column_generate_queue",
			Help:      "Длина очереди генерации колонок.",
		}),
		ColumnSendQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "column_send_queue",
			Help:      "Длина очереди отправки колонок.",
		}),
		CubeWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "cube_watchers",
			Help:      "Количество активных наблюдателей кубов.",
		}),
		ColumnWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "column_watchers",
			Help:      "Количество активных наблюдателей колонок.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "world",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика планировщика.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}

	reg.MustRegister(m.CubesGenerated, m.MessagesSent,
		m.CubeGenerateQueue, m.CubeSendQueue,
		m.ColumnGenerateQueue, m.ColumnSendQueue,
		m.CubeWatchers, m.ColumnWatchers, m.TickDuration)
	return m
}
