package events

import "github.com/the127/stevedore/internal/logging"

type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Publish(event Event) {
	switch e := event.(type) {
	case ChunkUploaded:
		logging.Logger.Infof("chunk %d uploaded for session %s (%d/%d)", e.ChunkIndex, e.SessionId, e.Uploaded, e.TotalChunks)

	case ChunkRetried:
		logging.Logger.Warnf("retrying chunk %d for session %s (attempt %d): %s", e.ChunkIndex, e.SessionId, e.Attempt, e.Err)

	case ChunkFailed:
		logging.Logger.Errorf("chunk %d failed for session %s: %s", e.ChunkIndex, e.SessionId, e.Err)

	case UploadCompleted:
		logging.Logger.Infof("upload %s (%s) completed in %s", e.SessionId, e.FileName, e.Duration)

	case UploadCancelled:
		logging.Logger.Infof("upload %s cancelled", e.SessionId)

	case MemoryPressure:
		switch e.Level {
		case PressureLevelWarning:
			logging.Logger.Warnf("memory pressure %s: heap %.1f%%, system %.1f%%", e.Level, e.HeapPct, e.SystemPct)

		default:
			logging.Logger.Errorf("memory pressure %s: heap %.1f%%, system %.1f%%", e.Level, e.HeapPct, e.SystemPct)
		}

	case UploadsShed:
		logging.Logger.Errorf("emergency remediation cancelled %d active uploads", e.Count)

	default:
		logging.Logger.Debugf("event: %s %+v", event.Name(), event)
	}
}
