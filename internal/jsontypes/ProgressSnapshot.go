package jsontypes

import (
	"time"

	"github.com/google/uuid"
)

// ProgressSnapshot is the read-optimized view of a session that gets
// published to the kv store after every chunk result. The progress API can
// serve it without touching the transfer core.
type ProgressSnapshot struct {
	SessionId      uuid.UUID `json:"sessionId"`
	FileId         string    `json:"fileId"`
	FileName       string    `json:"fileName"`
	Status         string    `json:"status"`
	UploadedChunks int       `json:"uploadedChunks"`
	FailedChunks   int       `json:"failedChunks"`
	TotalChunks    int       `json:"totalChunks"`
	Progress       float64   `json:"progress"`
	StartTime      time.Time `json:"startTime"`
	LastActivity   time.Time `json:"lastActivity"`
}
