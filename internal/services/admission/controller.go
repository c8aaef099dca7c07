// Package admission decides whether an upload may proceed based on live
// memory telemetry and runs escalating remediation when the process is under
// pressure.
package admission

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/config"
	"github.com/the127/stevedore/internal/events"
	"github.com/the127/stevedore/internal/logging"
	"github.com/the127/stevedore/internal/services/clock"
	"github.com/the127/stevedore/internal/services/memtelemetry"
)

type Code string

const (
	CodeFileTooLarge        Code = "FILE_TOO_LARGE"
	CodeTooManyUploads      Code = "TOO_MANY_UPLOADS"
	CodeMemoryLimitExceeded Code = "MEMORY_LIMIT_EXCEEDED"
	CodeSystemMemoryHigh    Code = "SYSTEM_MEMORY_HIGH"
)

type Decision struct {
	Allowed      bool
	UseStreaming bool
	Code         Code
	Reason       string
}

type Limits struct {
	MaxFileSize          int64
	MaxConcurrentUploads int
	MaxTotalMemory       int64
	StreamingThreshold   int64
	WarningPct           float64
	CriticalPct          float64
	EmergencyPct         float64
}

type Snapshot struct {
	HeapPct       float64
	SystemPct     float64
	ActiveCount   int
	ReservedBytes int64
}

type ActiveUpload struct {
	UploadId  uuid.UUID
	FileSize  int64
	FileName  string
	StartTime time.Time
}

// CancellerFn is how emergency remediation sheds load. Registered by the
// wiring layer so the controller never depends on the transfer core.
type CancellerFn func(uploadId uuid.UUID)

// Emergency halving never goes below one upload or one megabyte; repeated
// emergencies compound down to these floors and a single timed reset restores
// the configured values.
const (
	minConcurrentUploads = 1
	minFileSize          = 1024 * 1024
)

type remediationState int

const (
	stateIdle remediationState = iota
	stateRemediating
)

type Controller struct {
	mu sync.Mutex

	configured Limits
	limits     Limits

	cooldown   time.Duration
	resetAfter time.Duration

	telemetry memtelemetry.Service
	clock     clock.Service
	sink      events.Sink

	active        map[uuid.UUID]ActiveUpload
	reservedBytes int64

	state           remediationState
	lastRemediation time.Time
	resetAt         time.Time

	canceller     CancellerFn
	pressureHooks []func()
}

func NewController(limitsConfig config.LimitsConfig, telemetry memtelemetry.Service, clockService clock.Service, sink events.Sink) *Controller {
	limits := Limits{
		MaxFileSize:          limitsConfig.MaxFileSize,
		MaxConcurrentUploads: limitsConfig.MaxConcurrentUploads,
		MaxTotalMemory:       limitsConfig.MaxTotalMemory,
		StreamingThreshold:   limitsConfig.StreamingThreshold,
		WarningPct:           limitsConfig.WarningPct,
		CriticalPct:          limitsConfig.CriticalPct,
		EmergencyPct:         limitsConfig.EmergencyPct,
	}

	return &Controller{
		configured: limits,
		limits:     limits,
		cooldown:   time.Duration(limitsConfig.RemediationCooldownSecs) * time.Second,
		resetAfter: time.Duration(limitsConfig.EmergencyResetSecs) * time.Second,
		telemetry:  telemetry,
		clock:      clockService,
		sink:       sink,
		active:     make(map[uuid.UUID]ActiveUpload),
	}
}

// SetCanceller registers the callback used to cancel uploads during emergency
// remediation. Must be called before the monitor starts.
func (c *Controller) SetCanceller(canceller CancellerFn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceller = canceller
}

// RegisterPressureHook adds a cache-clearing hook that runs during the
// critical remediation pass.
func (c *Controller) RegisterPressureHook(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pressureHooks = append(c.pressureHooks, hook)
}

func (c *Controller) CanAcceptUpload(fileSize int64, fileName string) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeResetLimitsLocked()

	if fileSize > c.limits.MaxFileSize {
		return Decision{
			Code:   CodeFileTooLarge,
			Reason: fmt.Sprintf("file %s exceeds the maximum file size of %d bytes", fileName, c.limits.MaxFileSize),
		}
	}

	if len(c.active) >= c.limits.MaxConcurrentUploads {
		return Decision{
			Code:   CodeTooManyUploads,
			Reason: fmt.Sprintf("concurrent upload limit of %d reached", c.limits.MaxConcurrentUploads),
		}
	}

	if c.reservedBytes+fileSize > c.limits.MaxTotalMemory {
		return Decision{
			Code:   CodeMemoryLimitExceeded,
			Reason: fmt.Sprintf("accepting %d bytes would exceed the memory budget of %d bytes", fileSize, c.limits.MaxTotalMemory),
		}
	}

	sample := c.telemetry.Sample()
	if sample.SystemPct >= c.limits.CriticalPct {
		return Decision{
			Code:   CodeSystemMemoryHigh,
			Reason: fmt.Sprintf("system memory usage at %.1f%%", sample.SystemPct),
		}
	}

	return Decision{
		Allowed:      true,
		UseStreaming: fileSize > c.limits.StreamingThreshold,
	}
}

func (c *Controller) RegisterUpload(uploadId uuid.UUID, fileSize int64, fileName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[uploadId]; ok {
		return
	}

	c.active[uploadId] = ActiveUpload{
		UploadId:  uploadId,
		FileSize:  fileSize,
		FileName:  fileName,
		StartTime: c.clock.Now(),
	}
	c.reservedBytes += fileSize

	c.sink.Publish(events.UploadRegistered{
		UploadId:      uploadId,
		FileSize:      fileSize,
		ActiveCount:   len(c.active),
		ReservedBytes: c.reservedBytes,
	})
}

// UnregisterUpload releases the reserved capacity. It is idempotent so
// failure paths can always call it.
func (c *Controller) UnregisterUpload(uploadId uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	upload, ok := c.active[uploadId]
	if !ok {
		return
	}

	delete(c.active, uploadId)
	c.reservedBytes -= upload.FileSize

	c.sink.Publish(events.UploadReleased{
		UploadId:      uploadId,
		ActiveCount:   len(c.active),
		ReservedBytes: c.reservedBytes,
	})
}

func (c *Controller) ActiveUploads() []ActiveUpload {
	c.mu.Lock()
	defer c.mu.Unlock()

	uploads := make([]ActiveUpload, 0, len(c.active))
	for _, upload := range c.active {
		uploads = append(uploads, upload)
	}

	sort.Slice(uploads, func(i, j int) bool {
		return uploads[i].StartTime.Before(uploads[j].StartTime)
	})

	return uploads
}

func (c *Controller) Limits() Limits {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeResetLimitsLocked()
	return c.limits
}

// PendingReset reports when the emergency-halved limits will revert to the
// configured values, if such a reset is scheduled.
func (c *Controller) PendingReset() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeResetLimitsLocked()
	return c.resetAt, !c.resetAt.IsZero()
}

// UpdateLimits replaces both the current and the configured limits and drops
// any pending emergency reset.
func (c *Controller) UpdateLimits(limits Limits) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.configured = limits
	c.limits = limits
	c.resetAt = time.Time{}
}

// CheckMemoryUsage samples telemetry and, unless a remediation pass is
// already running, evaluates the thresholds and triggers the matching
// handler.
func (c *Controller) CheckMemoryUsage() Snapshot {
	sample := c.telemetry.Sample()

	c.mu.Lock()
	c.maybeResetLimitsLocked()

	snapshot := Snapshot{
		HeapPct:       sample.HeapPct,
		SystemPct:     sample.SystemPct,
		ActiveCount:   len(c.active),
		ReservedBytes: c.reservedBytes,
	}

	if c.state == stateRemediating {
		c.mu.Unlock()
		return snapshot
	}

	pct := sample.HeapPct
	if sample.SystemPct > pct {
		pct = sample.SystemPct
	}

	switch {
	case pct >= c.limits.EmergencyPct:
		c.handleEmergencyLocked(sample)

	case pct >= c.limits.CriticalPct:
		c.handleCriticalLocked(sample)

	case pct >= c.limits.WarningPct:
		c.sink.Publish(events.MemoryPressure{
			Level:     events.PressureLevelWarning,
			HeapPct:   sample.HeapPct,
			SystemPct: sample.SystemPct,
		})
		c.mu.Unlock()

	default:
		c.mu.Unlock()
	}

	return snapshot
}

// handleCriticalLocked runs one bounded remediation pass: pressure hooks
// (cache clears) plus a forced garbage collection, throttled to once per
// cooldown window. Enters with the mutex held, returns with it released.
func (c *Controller) handleCriticalLocked(sample memtelemetry.Sample) {
	now := c.clock.Now()
	if !c.lastRemediation.IsZero() && now.Sub(c.lastRemediation) < c.cooldown {
		c.mu.Unlock()
		return
	}

	c.state = stateRemediating
	c.lastRemediation = now
	hooks := make([]func(), len(c.pressureHooks))
	copy(hooks, c.pressureHooks)

	c.sink.Publish(events.MemoryPressure{
		Level:     events.PressureLevelCritical,
		HeapPct:   sample.HeapPct,
		SystemPct: sample.SystemPct,
	})
	c.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	runtime.GC()

	c.mu.Lock()
	c.state = stateIdle
	c.mu.Unlock()
}

// handleEmergencyLocked cancels the oldest half of the active uploads, halves
// the concurrency and file size limits and schedules the automatic reset.
// Enters with the mutex held, returns with it released.
func (c *Controller) handleEmergencyLocked(sample memtelemetry.Sample) {
	now := c.clock.Now()

	c.state = stateRemediating
	c.lastRemediation = now

	c.limits.MaxConcurrentUploads = c.limits.MaxConcurrentUploads / 2
	if c.limits.MaxConcurrentUploads < minConcurrentUploads {
		c.limits.MaxConcurrentUploads = minConcurrentUploads
	}

	c.limits.MaxFileSize = c.limits.MaxFileSize / 2
	if c.limits.MaxFileSize < minFileSize {
		c.limits.MaxFileSize = minFileSize
	}

	c.resetAt = now.Add(c.resetAfter)

	uploads := make([]ActiveUpload, 0, len(c.active))
	for _, upload := range c.active {
		uploads = append(uploads, upload)
	}
	sort.Slice(uploads, func(i, j int) bool {
		return uploads[i].StartTime.Before(uploads[j].StartTime)
	})

	shedCount := (len(uploads) + 1) / 2
	toCancel := uploads[:shedCount]
	canceller := c.canceller

	c.sink.Publish(events.MemoryPressure{
		Level:     events.PressureLevelEmergency,
		HeapPct:   sample.HeapPct,
		SystemPct: sample.SystemPct,
	})
	c.mu.Unlock()

	if canceller != nil {
		for _, upload := range toCancel {
			canceller(upload.UploadId)
		}
	}

	if shedCount > 0 {
		c.sink.Publish(events.UploadsShed{Count: shedCount})
	}

	logging.Logger.Errorf("emergency remediation: limits halved, %d uploads cancelled, reset in %s", shedCount, c.resetAfter)

	c.mu.Lock()
	c.state = stateIdle
	c.mu.Unlock()
}

// maybeResetLimitsLocked applies a pending post-emergency reset once its
// cooldown has elapsed.
func (c *Controller) maybeResetLimitsLocked() {
	if c.resetAt.IsZero() {
		return
	}

	if c.clock.Now().Before(c.resetAt) {
		return
	}

	c.limits = c.configured
	c.resetAt = time.Time{}
	logging.Logger.Infof("emergency limits reset to configured values")
}
