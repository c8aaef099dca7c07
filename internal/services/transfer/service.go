// Package transfer implements the resumable chunked-transfer core: session
// lifecycle, per-chunk timeout/retry on top of a caller-supplied transport
// function, integrity verification and final assembly.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/config"
	"github.com/the127/stevedore/internal/events"
	"github.com/the127/stevedore/internal/jsontypes"
	"github.com/the127/stevedore/internal/logging"
	"github.com/the127/stevedore/internal/services/clock"
	"github.com/the127/stevedore/internal/services/kv"
)

// TransportFunc delivers one chunk downstream. The core only contributes the
// timeout/retry wrapper around it, never the transport's own wire protocol.
type TransportFunc func(ctx context.Context, data []byte, chunkIndex int, session SessionInfo) error

// Settings are process-wide, shared by all sessions, and read at attempt
// time so admin updates apply to in-flight resumes too.
type Settings struct {
	ChunkTimeout   time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Service struct {
	mu sync.Mutex

	store    *sessionStore
	settings Settings

	staleAfter  time.Duration
	cancelGrace time.Duration

	clock   clock.Service
	sink    events.Sink
	kvStore kv.Store

	// onCleanup releases the admission reservation for a session, wired by
	// the setup layer so the two services stay decoupled.
	onCleanup func(uuid.UUID)

	stopCh chan struct{}
}

func NewService(transferConfig config.TransferConfig, janitorConfig config.JanitorConfig, clockService clock.Service, sink events.Sink, kvStore kv.Store) (*Service, error) {
	store, err := newSessionStore()
	if err != nil {
		return nil, err
	}

	return &Service{
		store: store,
		settings: Settings{
			ChunkTimeout:   time.Duration(transferConfig.ChunkTimeoutSecs) * time.Second,
			MaxRetries:     transferConfig.MaxRetries,
			RetryBaseDelay: time.Duration(transferConfig.RetryBaseDelayMilli) * time.Millisecond,
		},
		staleAfter:  time.Duration(janitorConfig.StaleAfterSecs) * time.Second,
		cancelGrace: time.Duration(janitorConfig.CancelGraceSecs) * time.Second,
		clock:       clockService,
		sink:        sink,
		kvStore:     kvStore,
		stopCh:      make(chan struct{}),
	}, nil
}

// Stop tears down the deferred-cleanup goroutines spawned by Cancel.
func (s *Service) Stop() {
	close(s.stopCh)
}

func (s *Service) SetCleanupHook(hook func(uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCleanup = hook
}

func (s *Service) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Service) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *Service) CreateSession(fileId string, fileSize int64, fileName string, userId string) (*SessionInfo, error) {
	if fileSize <= 0 {
		return nil, fmt.Errorf("file size must be positive, got %d", fileSize)
	}

	chunkSize := chunkSizeFor(fileSize)
	now := s.clock.Now()

	session := &Session{
		Id:           uuid.New(),
		FileId:       fileId,
		FileName:     fileName,
		UserId:       userId,
		FileSize:     fileSize,
		ChunkSize:    chunkSize,
		TotalChunks:  int(math.Ceil(float64(fileSize) / float64(chunkSize))),
		Status:       StatusInitialized,
		StartTime:    now,
		LastActivity: now,
		uploaded:     make(map[int]*ChunkRecord),
		failed:       make(map[int][]byte),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.insert(session)
	if err != nil {
		return nil, err
	}

	info := session.info()
	return &info, nil
}

// UploadChunk transfers one chunk through the transport function, racing it
// against the per-chunk timeout and retrying with exponential backoff. A
// failure that exhausts the retry budget marks the session failed but keeps
// it resumable.
func (s *Service) UploadChunk(ctx context.Context, sessionId uuid.UUID, chunkIndex int, data []byte, transport TransportFunc) error {
	s.mu.Lock()

	session, ok := s.store.get(sessionId)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}

	if chunkIndex < 0 || chunkIndex >= session.TotalChunks {
		s.mu.Unlock()
		return fmt.Errorf("chunk %d of %d: %w", chunkIndex, session.TotalChunks, ErrChunkIndexOutOfRange)
	}

	if session.Status == StatusCancelled {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionId, ErrSessionCancelled)
	}

	if session.Status == StatusInitialized {
		session.Status = StatusUploading
	}

	// The session owns its chunk buffers, never the caller's slice.
	owned := make([]byte, len(data))
	copy(owned, data)

	info := session.info()
	settings := s.settings
	s.mu.Unlock()

	err := s.transferChunk(ctx, info, chunkIndex, owned, transport, settings)
	return s.recordChunkResult(ctx, sessionId, chunkIndex, owned, err)
}

// Resume re-drives exactly the chunks not yet uploaded, sequentially and in
// ascending index order, resending the buffers retained from failed
// attempts.
func (s *Service) Resume(ctx context.Context, sessionId uuid.UUID, transport TransportFunc) error {
	s.mu.Lock()

	session, ok := s.store.get(sessionId)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}

	if session.Status == StatusCancelled {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionId, ErrSessionCancelled)
	}

	if session.Status == StatusCompleted {
		s.mu.Unlock()
		return nil
	}

	pending := session.pendingChunks()
	for _, index := range pending {
		if _, ok := session.failed[index]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("chunk %d was never received: %w", index, ErrChunkDataMissing)
		}
	}

	session.Status = StatusResuming
	info := session.info()
	settings := s.settings
	s.mu.Unlock()

	for _, index := range pending {
		s.mu.Lock()
		session, ok = s.store.get(sessionId)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
		}

		// Cancellation is cooperative, checked between chunks.
		if session.Status == StatusCancelled {
			s.mu.Unlock()
			return fmt.Errorf("session %s: %w", sessionId, ErrSessionCancelled)
		}

		// A concurrent upload may have landed this index since the pending
		// set was computed.
		if _, ok := session.uploaded[index]; ok {
			s.mu.Unlock()
			continue
		}

		data := session.failed[index]
		s.mu.Unlock()

		err := s.transferChunk(ctx, info, index, data, transport, settings)
		err = s.recordChunkResult(ctx, sessionId, index, data, err)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) transferChunk(ctx context.Context, info SessionInfo, chunkIndex int, data []byte, transport TransportFunc, settings Settings) error {
	return retry.Do(
		func() error {
			return s.attemptChunk(ctx, info, chunkIndex, data, transport, settings.ChunkTimeout)
		},
		// MaxRetries counts retries after the initial attempt.
		retry.Attempts(uint(settings.MaxRetries)+1),
		retry.Delay(settings.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(attempt uint, err error) {
			s.mu.Lock()
			if session, ok := s.store.get(info.Id); ok {
				session.RetryCount++
			}
			s.mu.Unlock()

			s.sink.Publish(events.ChunkRetried{
				SessionId:  info.Id,
				ChunkIndex: chunkIndex,
				Attempt:    int(attempt) + 1,
				Err:        err,
			})
		}),
	)
}

// attemptChunk races one transport call against the chunk timeout.
func (s *Service) attemptChunk(ctx context.Context, info SessionInfo, chunkIndex int, data []byte, transport TransportFunc, timeout time.Duration) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- transport(attemptCtx, data, chunkIndex, info)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("chunk %d (%s): %w", chunkIndex, err, ErrChunkTransport)
		}
		return nil

	case <-attemptCtx.Done():
		return fmt.Errorf("chunk %d after %s: %w", chunkIndex, timeout, ErrChunkTimeout)
	}
}

func (s *Service) recordChunkResult(ctx context.Context, sessionId uuid.UUID, chunkIndex int, data []byte, transferErr error) error {
	now := s.clock.Now()

	s.mu.Lock()

	session, ok := s.store.get(sessionId)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}

	// A cancellation that landed while the transport was in flight wins over
	// whatever the transport returned. Cancelled is terminal.
	if session.Status == StatusCancelled {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionId, ErrSessionCancelled)
	}

	session.LastActivity = now

	if transferErr != nil {
		session.failed[chunkIndex] = data
		session.Status = StatusFailed
		snapshot := session.snapshot()
		s.mu.Unlock()

		s.sink.Publish(events.ChunkFailed{
			SessionId:  sessionId,
			ChunkIndex: chunkIndex,
			Err:        transferErr,
		})
		s.publishSnapshot(ctx, snapshot)

		return transferErr
	}

	sum := sha256.Sum256(data)
	delete(session.failed, chunkIndex)
	session.uploaded[chunkIndex] = &ChunkRecord{
		Index:      chunkIndex,
		Data:       data,
		Size:       len(data),
		Checksum:   hex.EncodeToString(sum[:]),
		UploadedAt: now,
	}

	uploadedCount := len(session.uploaded)
	totalChunks := session.TotalChunks
	fileName := session.FileName
	startTime := session.StartTime

	completed := uploadedCount == totalChunks
	if completed {
		session.Status = StatusCompleted
	}

	snapshot := session.snapshot()
	s.mu.Unlock()

	s.sink.Publish(events.ChunkUploaded{
		SessionId:   sessionId,
		ChunkIndex:  chunkIndex,
		Uploaded:    uploadedCount,
		TotalChunks: totalChunks,
	})

	if completed {
		s.sink.Publish(events.UploadCompleted{
			SessionId: sessionId,
			FileName:  fileName,
			Duration:  now.Sub(startTime),
		})
	}

	s.publishSnapshot(ctx, snapshot)
	return nil
}

// VerifyIntegrity recomputes every stored chunk checksum, catching in-memory
// corruption as well as anything the transport let through.
func (s *Service) VerifyIntegrity(sessionId uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.store.get(sessionId)
	if !ok {
		return false, fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}

	return s.verifyLocked(session), nil
}

func (s *Service) verifyLocked(session *Session) bool {
	for index := 0; index < session.TotalChunks; index++ {
		record, ok := session.uploaded[index]
		if !ok {
			return false
		}

		sum := sha256.Sum256(record.Data)
		if hex.EncodeToString(sum[:]) != record.Checksum {
			return false
		}
	}

	return true
}

// Assemble concatenates the chunks strictly in index order. It refuses to
// hand out a buffer that fails verification or whose length differs from the
// declared file size.
func (s *Service) Assemble(sessionId uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.store.get(sessionId)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}

	if !s.verifyLocked(session) {
		return nil, fmt.Errorf("session %s: %w", sessionId, ErrIntegrity)
	}

	buffer := make([]byte, 0, session.FileSize)
	for index := 0; index < session.TotalChunks; index++ {
		buffer = append(buffer, session.uploaded[index].Data...)
	}

	if int64(len(buffer)) != session.FileSize {
		return nil, fmt.Errorf("session %s: got %d bytes, declared %d: %w", sessionId, len(buffer), session.FileSize, ErrSizeMismatch)
	}

	return buffer, nil
}

func (s *Service) Progress(sessionId uuid.UUID) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.store.get(sessionId)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}

	progress := session.progress()
	return &progress, nil
}

// Cancel marks the session cancelled and defers the actual cleanup by a
// short grace period so in-flight operations observe the cancellation before
// teardown.
func (s *Service) Cancel(ctx context.Context, sessionId uuid.UUID) error {
	s.mu.Lock()

	session, ok := s.store.get(sessionId)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionId, ErrSessionNotFound)
	}

	if session.Status == StatusCancelled {
		s.mu.Unlock()
		return nil
	}

	session.Status = StatusCancelled
	session.LastActivity = s.clock.Now()
	snapshot := session.snapshot()
	s.mu.Unlock()

	s.sink.Publish(events.UploadCancelled{SessionId: sessionId})
	s.publishSnapshot(ctx, snapshot)

	go s.cleanupAfterGrace(sessionId)
	return nil
}

func (s *Service) cleanupAfterGrace(sessionId uuid.UUID) {
	ticker := s.clock.NewTicker(s.cancelGrace)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		s.Cleanup(context.Background(), sessionId)

	case <-s.stopCh:
	}
}

// Cleanup removes a session and its chunk records. Idempotent.
func (s *Service) Cleanup(ctx context.Context, sessionId uuid.UUID) {
	s.mu.Lock()

	session, ok := s.store.get(sessionId)
	if !ok {
		s.mu.Unlock()
		return
	}

	err := s.store.delete(session)
	hook := s.onCleanup
	s.mu.Unlock()

	if err != nil {
		logging.Logger.Errorf("failed to delete session %s: %s", sessionId, err)
		return
	}

	err = s.kvStore.Delete(ctx, SnapshotKey(sessionId))
	if err != nil {
		logging.Logger.Warnf("failed to delete progress snapshot for %s: %s", sessionId, err)
	}

	if hook != nil {
		hook(sessionId)
	}
}

// SweepStale removes sessions whose last activity exceeds the staleness
// window, regardless of status. Bounds memory growth from abandoned
// transfers.
func (s *Service) SweepStale(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	var stale []uuid.UUID
	for _, session := range s.store.all() {
		if now.Sub(session.LastActivity) > s.staleAfter {
			stale = append(stale, session.Id)
		}
	}
	s.mu.Unlock()

	for _, sessionId := range stale {
		logging.Logger.Infof("sweeping stale session %s", sessionId)
		s.Cleanup(ctx, sessionId)
	}

	return len(stale)
}

// SnapshotKey is the kv key under which a session's progress snapshot is
// published.
func SnapshotKey(sessionId uuid.UUID) string {
	return fmt.Sprintf("upload_progress:%s", sessionId)
}

func (s *Session) snapshot() jsontypes.ProgressSnapshot {
	progress := s.progress()
	return jsontypes.ProgressSnapshot{
		SessionId:      progress.SessionId,
		FileId:         progress.FileId,
		FileName:       progress.FileName,
		Status:         string(progress.Status),
		UploadedChunks: progress.UploadedChunks,
		FailedChunks:   progress.FailedChunks,
		TotalChunks:    progress.TotalChunks,
		Progress:       progress.Fraction,
		StartTime:      progress.StartTime,
		LastActivity:   progress.LastActivity,
	}
}

func (s *Service) publishSnapshot(ctx context.Context, snapshot jsontypes.ProgressSnapshot) {
	jsonBytes, err := json.Marshal(snapshot)
	if err != nil {
		logging.Logger.Warnf("failed to marshal progress snapshot: %s", err)
		return
	}

	err = s.kvStore.Set(ctx, SnapshotKey(snapshot.SessionId), string(jsonBytes), kv.WithExpiration(s.staleAfter))
	if err != nil {
		logging.Logger.Warnf("failed to publish progress snapshot: %s", err)
	}
}
