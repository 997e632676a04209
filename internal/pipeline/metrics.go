package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parkinglens_ingest_messages_consumed_total",
			Help: "Availability messages fetched from Kafka.",
		},
	)
	parseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkinglens_ingest_parse_failures_total",
			Help: "Messages dropped by the parser, by reason.",
		},
		[]string{"reason"}, // json, invalid, record_time
	)
	rowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parkinglens_ingest_rows_written_total",
			Help: "Rows inserted into realtime_spots. Duplicates are not counted.",
		},
	)
	writeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parkinglens_ingest_write_failures_total",
			Help: "Rows lost because their batch could not be written.",
		},
	)
	lotAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkinglens_lot_available_cars",
			Help: "Last seen available car spaces per lot.",
		},
		[]string{"lot_id"},
	)
	lotUsageRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkinglens_lot_usage_rate",
			Help: "Last seen usage rate (percent) per lot, from catalog capacity.",
		},
		[]string{"lot_id"},
	)
	lotHighUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkinglens_lot_high_usage_total",
			Help: "Samples whose usage rate exceeded the peak threshold, per lot.",
		},
		[]string{"lot_id"},
	)
)
