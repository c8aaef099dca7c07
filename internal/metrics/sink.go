package metrics

import "github.com/the127/stevedore/internal/events"

// Sink translates core notifications into prometheus series.
type Sink struct{}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Publish(event events.Event) {
	switch e := event.(type) {
	case events.ChunkUploaded:
		ChunksUploaded.Inc()

	case events.ChunkRetried:
		ChunkRetries.Inc()

	case events.ChunkFailed:
		ChunksFailed.Inc()

	case events.UploadCompleted:
		UploadsCompleted.Inc()

	case events.UploadCancelled:
		UploadsCancelled.Inc()

	case events.UploadsShed:
		UploadsShed.Add(float64(e.Count))

	case events.MemoryPressure:
		MemoryPressure.WithLabelValues(string(e.Level)).Inc()

	case events.UploadRegistered:
		ReservedBytes.Set(float64(e.ReservedBytes))
		ActiveUploads.Set(float64(e.ActiveCount))

	case events.UploadReleased:
		ReservedBytes.Set(float64(e.ReservedBytes))
		ActiveUploads.Set(float64(e.ActiveCount))
	}
}
