// Package events carries the typed notifications emitted by the admission
// controller and the transfer core. The core only emits, sinks decide what to
// do with them (logs, metrics, ...).
package events

import (
	"time"

	"github.com/google/uuid"
)

type PressureLevel string

const (
	PressureLevelWarning   PressureLevel = "warning"
	PressureLevelCritical  PressureLevel = "critical"
	PressureLevelEmergency PressureLevel = "emergency"
)

type Event interface {
	Name() string
}

type ChunkUploaded struct {
	SessionId   uuid.UUID
	ChunkIndex  int
	Uploaded    int
	TotalChunks int
}

func (ChunkUploaded) Name() string { return "chunk_uploaded" }

type ChunkRetried struct {
	SessionId  uuid.UUID
	ChunkIndex int
	Attempt    int
	Err        error
}

func (ChunkRetried) Name() string { return "chunk_retried" }

type ChunkFailed struct {
	SessionId  uuid.UUID
	ChunkIndex int
	Err        error
}

func (ChunkFailed) Name() string { return "chunk_failed" }

type UploadCompleted struct {
	SessionId uuid.UUID
	FileName  string
	Duration  time.Duration
}

func (UploadCompleted) Name() string { return "upload_completed" }

type UploadCancelled struct {
	SessionId uuid.UUID
}

func (UploadCancelled) Name() string { return "upload_cancelled" }

type UploadRegistered struct {
	UploadId      uuid.UUID
	FileSize      int64
	ActiveCount   int
	ReservedBytes int64
}

func (UploadRegistered) Name() string { return "upload_registered" }

type UploadReleased struct {
	UploadId      uuid.UUID
	ActiveCount   int
	ReservedBytes int64
}

func (UploadReleased) Name() string { return "upload_released" }

type MemoryPressure struct {
	Level     PressureLevel
	HeapPct   float64
	SystemPct float64
}

func (MemoryPressure) Name() string { return "memory_pressure" }

type UploadsShed struct {
	Count int
}

func (UploadsShed) Name() string { return "uploads_shed" }

type Sink interface {
	Publish(event Event)
}

type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(event Event) {
	for _, sink := range f.sinks {
		sink.Publish(event)
	}
}
