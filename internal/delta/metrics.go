package delta

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgdelta_uploaded_files_total",
		Help: "Cumulative number of content-addressed chunks transferred.",
	})
	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgdelta_uploaded_input_bytes_total",
		Help: "Cumulative raw bytes read for transferred chunks.",
	})
	storedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgdelta_uploaded_stored_bytes_total",
		Help: "Cumulative bytes stored after compression and encryption.",
	})
	uploadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgdelta_upload_failures_total",
		Help: "Cumulative number of per-hash upload failures.",
	})
	compensationDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pgdelta_compensation_deletes_total",
		Help: "Cumulative number of compensating deletes after batch failures.",
	})
)
