package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaetrn_page_fetches_total",
			Help: "Total JMA page fetches",
		},
		[]string{"page", "status"},
	)

	PageFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jmaetrn_page_fetch_latency_seconds",
			Help:    "JMA page fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"page"},
	)

	MissingTablesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaetrn_missing_tables_total",
			Help: "Series pages fetched without a data table",
		},
		[]string{"granularity"},
	)

	StationsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaetrn_stations_decoded_total",
			Help: "Station markers successfully decoded",
		},
		[]string{"region"},
	)

	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaetrn_decode_errors_total",
			Help: "Station markers dropped because their payload did not decode",
		},
		[]string{"region"},
	)

	ObservationsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaetrn_observations_collected_total",
			Help: "Observation rows kept after window filtering",
		},
		[]string{"granularity"},
	)
)

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
