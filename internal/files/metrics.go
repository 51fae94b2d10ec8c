package files

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "files_uploads_total",
			Help: "Stored uploads by category and compression tag.",
		},
		[]string{"category", "compression"},
	)

	uploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "files_upload_bytes_total",
			Help: "Upload bytes before (original) and after (stored) compression.",
		},
		[]string{"category", "kind"},
	)

	rejectedUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "files_rejected_uploads_total",
			Help: "Uploads rejected by validation.",
		},
		[]string{"category"},
	)

	downloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "files_downloads_total",
			Help: "Files served to authorized readers.",
		},
	)
)
