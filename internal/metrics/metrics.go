package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// Backup metrics
	BackupOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_pos_backup_operations_total",
			Help: "Total number of backup operations by result",
		},
		[]string{"operation", "result"},
	)

	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cafe_pos_backup_duration_seconds",
			Help:    "Duration of backup operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BackupFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_pos_backup_files_total",
			Help: "Upload files collected or restored",
		},
		[]string{"operation"},
	)

	RecordsRestored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cafe_pos_backup_records_restored",
			Help: "Records written by the most recent restore, per collection",
		},
		[]string{"collection"},
	)

	// Archive storage metrics
	ArchiveStorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_pos_archive_storage_operations_total",
			Help: "Archive storage provider operations",
		},
		[]string{"provider", "operation", "result"},
	)

	ArchiveBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_pos_archive_bytes_total",
			Help: "Bytes written to or read from archive storage",
		},
		[]string{"provider", "direction"},
	)

	// WhatsApp metrics
	WhatsAppMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_pos_whatsapp_messages_total",
			Help: "WhatsApp messages by delivery status",
		},
		[]string{"status"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_pos_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cafe_pos_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Result maps an error to a result label
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// ObserveBackup records the outcome and duration of a backup operation
func ObserveBackup(operation string, start time.Time, err error) {
	BackupOperations.WithLabelValues(operation, Result(err)).Inc()
	BackupDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveStorage records one archive provider call
func ObserveStorage(provider, operation string, err error) {
	ArchiveStorageOperations.WithLabelValues(provider, operation, Result(err)).Inc()
}
