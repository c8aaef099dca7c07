package transfer

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInitialized Status = "initialized"
	StatusUploading   Status = "uploading"
	StatusResuming    Status = "resuming"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// ChunkRecord owns a successfully transferred chunk. Buffers are kept for
// the whole session lifetime so failed peers can be resent and the final
// assembly never has to refetch anything.
type ChunkRecord struct {
	Index      int
	Data       []byte
	Size       int
	Checksum   string
	UploadedAt time.Time
}

type Session struct {
	Id          uuid.UUID
	FileId      string
	FileName    string
	UserId      string
	FileSize    int64
	ChunkSize   int64
	TotalChunks int

	Status       Status
	StartTime    time.Time
	LastActivity time.Time
	RetryCount   int

	uploaded map[int]*ChunkRecord
	failed   map[int][]byte
}

// SessionInfo is the immutable slice of a session handed to transport
// functions, so they never share mutable state with the service.
type SessionInfo struct {
	Id          uuid.UUID
	FileId      string
	FileName    string
	UserId      string
	FileSize    int64
	ChunkSize   int64
	TotalChunks int
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		Id:          s.Id,
		FileId:      s.FileId,
		FileName:    s.FileName,
		UserId:      s.UserId,
		FileSize:    s.FileSize,
		ChunkSize:   s.ChunkSize,
		TotalChunks: s.TotalChunks,
	}
}

// pendingChunks returns the ascending complement of the uploaded set.
func (s *Session) pendingChunks() []int {
	pending := make([]int, 0, s.TotalChunks-len(s.uploaded))
	for index := 0; index < s.TotalChunks; index++ {
		if _, ok := s.uploaded[index]; !ok {
			pending = append(pending, index)
		}
	}
	return pending
}

// Chunk size tiers trade per-chunk latency against per-chunk memory
// footprint: small files upload in few round trips, large files keep the
// in-flight buffer bounded.
const (
	chunkSize256K = 256 * 1024
	chunkSize512K = 512 * 1024
	chunkSize1M   = 1024 * 1024
	chunkSize2M   = 2 * 1024 * 1024
)

func chunkSizeFor(fileSize int64) int64 {
	switch {
	case fileSize < 1024*1024:
		return chunkSize256K

	case fileSize < 10*1024*1024:
		return chunkSize512K

	case fileSize < 100*1024*1024:
		return chunkSize1M

	default:
		return chunkSize2M
	}
}

type Progress struct {
	SessionId      uuid.UUID
	FileId         string
	FileName       string
	Status         Status
	UploadedChunks int
	FailedChunks   int
	TotalChunks    int
	Fraction       float64
	StartTime      time.Time
	LastActivity   time.Time
	RetryCount     int
}

func (s *Session) progress() Progress {
	fraction := 0.0
	if s.TotalChunks > 0 {
		fraction = float64(len(s.uploaded)) / float64(s.TotalChunks)
	}

	return Progress{
		SessionId:      s.Id,
		FileId:         s.FileId,
		FileName:       s.FileName,
		Status:         s.Status,
		UploadedChunks: len(s.uploaded),
		FailedChunks:   len(s.failed),
		TotalChunks:    s.TotalChunks,
		Fraction:       fraction,
		StartTime:      s.StartTime,
		LastActivity:   s.LastActivity,
		RetryCount:     s.RetryCount,
	}
}
