package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChunksUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_chunks_uploaded_total",
			Help: "Total number of chunks uploaded",
		},
	)
	ChunkRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_chunk_retries_total",
			Help: "Total number of chunk transfer retries",
		},
	)
	ChunksFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_chunks_failed_total",
			Help: "Total number of chunks that exhausted their retry budget",
		},
	)
	UploadsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_uploads_completed_total",
			Help: "Total number of completed uploads",
		},
	)
	UploadsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_uploads_cancelled_total",
			Help: "Total number of cancelled uploads",
		},
	)
	UploadsShed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stevedore_uploads_shed_total",
			Help: "Total number of uploads cancelled by emergency remediation",
		},
	)
	MemoryPressure = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stevedore_memory_pressure_total",
			Help: "Total number of memory pressure events by level",
		},
		[]string{"level"},
	)
	ReservedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stevedore_reserved_bytes",
			Help: "Bytes currently reserved for active uploads",
		},
	)
	ActiveUploads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stevedore_active_uploads",
			Help: "Number of currently registered uploads",
		},
	)
)

func init() {
	prometheus.MustRegister(ChunksUploaded)
	prometheus.MustRegister(ChunkRetries)
	prometheus.MustRegister(ChunksFailed)
	prometheus.MustRegister(UploadsCompleted)
	prometheus.MustRegister(UploadsCancelled)
	prometheus.MustRegister(UploadsShed)
	prometheus.MustRegister(MemoryPressure)
	prometheus.MustRegister(ReservedBytes)
	prometheus.MustRegister(ActiveUploads)
}
