package transfer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/the127/stevedore/internal/config"
	"github.com/the127/stevedore/internal/events"
	"github.com/the127/stevedore/internal/services/clock"
	"github.com/the127/stevedore/internal/services/kv"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) countByName(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, event := range s.events {
		if event.Name() == name {
			count++
		}
	}
	return count
}

type ServiceTestSuite struct {
	suite.Suite

	service *Service
	sink    *recordingSink
	setTime clock.TimeSetterFn
	now     time.Time
}

func TestServiceTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clockService, setTime := clock.NewMockService(s.now)
	s.setTime = setTime

	s.sink = &recordingSink{}

	service, err := NewService(
		config.TransferConfig{
			ChunkTimeoutSecs:    5,
			MaxRetries:          3,
			RetryBaseDelayMilli: 1,
		},
		config.JanitorConfig{
			SweepIntervalSecs: 3600,
			StaleAfterSecs:    86400,
			CancelGraceSecs:   1,
		},
		clockService,
		s.sink,
		kv.NewMemoryStore(),
	)
	s.Require().NoError(err)
	s.service = service
}

func (s *ServiceTestSuite) TearDownTest() {
	s.service.Stop()
}

func okTransport(_ context.Context, _ []byte, _ int, _ SessionInfo) error {
	return nil
}

func failingTransport(_ context.Context, _ []byte, _ int, _ SessionInfo) error {
	return errors.New("connection reset")
}

// chunksOf splits data the same way the service sizes chunks for the session.
func chunksOf(data []byte, chunkSize int64) [][]byte {
	var chunks [][]byte
	for start := 0; start < len(data); start += int(chunkSize) {
		end := start + int(chunkSize)
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func (s *ServiceTestSuite) uploadAll(sessionId uuid.UUID, chunks [][]byte, transport TransportFunc) error {
	for index, chunk := range chunks {
		err := s.service.UploadChunk(context.Background(), sessionId, index, chunk, transport)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceTestSuite) TestCreateSession_ChunkSizeTiers() {
	cases := []struct {
		fileSize          int64
		expectedChunkSize int64
	}{
		{500 * 1024, 256 * 1024},
		{5 * 1024 * 1024, 512 * 1024},
		{50 * 1024 * 1024, 1024 * 1024},
		{150 * 1024 * 1024, 2 * 1024 * 1024},
	}

	for _, c := range cases {
		// act
		info, err := s.service.CreateSession("file-1", c.fileSize, "file.bin", "user-1")

		// assert
		s.Require().NoError(err)
		s.Equal(c.expectedChunkSize, info.ChunkSize)
	}
}

func (s *ServiceTestSuite) TestCreateSession_RejectsNonPositiveSize() {
	// act
	_, err := s.service.CreateSession("file-1", 0, "file.bin", "user-1")

	// assert
	s.Error(err)
}

func (s *ServiceTestSuite) TestUploadChunk_CompletesSession() {
	// arrange
	data := testData(500 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)
	chunks := chunksOf(data, info.ChunkSize)
	s.Require().Len(chunks, info.TotalChunks)

	// act
	err = s.uploadAll(info.Id, chunks, okTransport)

	// assert
	s.Require().NoError(err)

	progress, err := s.service.Progress(info.Id)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, progress.Status)
	s.Equal(1.0, progress.Fraction)
	s.Equal(1, s.sink.countByName("upload_completed"))
}

func (s *ServiceTestSuite) TestUploadChunk_IndexOutOfRange() {
	// arrange
	info, err := s.service.CreateSession("file-1", 500*1024, "file.bin", "user-1")
	s.Require().NoError(err)

	// act
	err = s.service.UploadChunk(context.Background(), info.Id, 99, []byte("data"), okTransport)

	// assert
	s.ErrorIs(err, ErrChunkIndexOutOfRange)
}

func (s *ServiceTestSuite) TestUploadChunk_UnknownSession() {
	// act
	err := s.service.UploadChunk(context.Background(), uuid.New(), 0, []byte("data"), okTransport)

	// assert
	s.ErrorIs(err, ErrSessionNotFound)
}

func (s *ServiceTestSuite) TestUploadChunk_RetriesThenSucceeds() {
	// arrange
	info, err := s.service.CreateSession("file-1", 100*1024, "file.bin", "user-1")
	s.Require().NoError(err)

	attempts := 0
	flaky := func(_ context.Context, _ []byte, _ int, _ SessionInfo) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	}

	// act
	err = s.service.UploadChunk(context.Background(), info.Id, 0, testData(100*1024), flaky)

	// assert
	s.Require().NoError(err)
	s.Equal(3, attempts)
	s.Equal(2, s.sink.countByName("chunk_retried"))

	progress, err := s.service.Progress(info.Id)
	s.Require().NoError(err)
	s.Equal(2, progress.RetryCount)
}

func (s *ServiceTestSuite) TestUploadChunk_ExhaustedRetriesMarkFailed() {
	// arrange
	info, err := s.service.CreateSession("file-1", 100*1024, "file.bin", "user-1")
	s.Require().NoError(err)

	// act
	err = s.service.UploadChunk(context.Background(), info.Id, 0, testData(100*1024), failingTransport)

	// assert
	s.ErrorIs(err, ErrChunkTransport)
	s.Equal(1, s.sink.countByName("chunk_failed"))

	progress, err := s.service.Progress(info.Id)
	s.Require().NoError(err)
	s.Equal(StatusFailed, progress.Status)
	s.Equal(1, progress.FailedChunks)
}

func (s *ServiceTestSuite) TestUploadChunk_RetryBudgetExcludesFirstAttempt() {
	// arrange
	info, err := s.service.CreateSession("file-1", 100*1024, "file.bin", "user-1")
	s.Require().NoError(err)

	attempts := 0
	counting := func(_ context.Context, _ []byte, _ int, _ SessionInfo) error {
		attempts++
		return errors.New("connection reset")
	}

	// act
	err = s.service.UploadChunk(context.Background(), info.Id, 0, testData(100*1024), counting)

	// assert
	s.ErrorIs(err, ErrChunkTransport)
	// MaxRetries retries on top of the initial attempt
	s.Equal(s.service.Settings().MaxRetries+1, attempts)
}

func (s *ServiceTestSuite) TestUploadChunk_TimesOut() {
	// arrange
	settings := s.service.Settings()
	settings.ChunkTimeout = 20 * time.Millisecond
	settings.MaxRetries = 1
	s.service.UpdateSettings(settings)

	info, err := s.service.CreateSession("file-1", 100*1024, "file.bin", "user-1")
	s.Require().NoError(err)

	slow := func(_ context.Context, _ []byte, _ int, _ SessionInfo) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	}

	// act
	err = s.service.UploadChunk(context.Background(), info.Id, 0, testData(100*1024), slow)

	// assert
	s.ErrorIs(err, ErrChunkTimeout)
}

func (s *ServiceTestSuite) TestResume_RedrivesOnlyPendingChunks() {
	// arrange
	data := testData(700 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)
	chunks := chunksOf(data, info.ChunkSize)
	s.Require().Len(chunks, 3)

	s.Require().NoError(s.service.UploadChunk(context.Background(), info.Id, 0, chunks[0], okTransport))
	s.Require().NoError(s.service.UploadChunk(context.Background(), info.Id, 2, chunks[2], okTransport))
	s.Require().ErrorIs(s.service.UploadChunk(context.Background(), info.Id, 1, chunks[1], failingTransport), ErrChunkTransport)

	var resent []int
	counting := func(_ context.Context, _ []byte, chunkIndex int, _ SessionInfo) error {
		resent = append(resent, chunkIndex)
		return nil
	}

	// act
	err = s.service.Resume(context.Background(), info.Id, counting)

	// assert
	s.Require().NoError(err)
	s.Equal([]int{1}, resent)

	progress, err := s.service.Progress(info.Id)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, progress.Status)

	assembled, err := s.service.Assemble(info.Id)
	s.Require().NoError(err)
	s.True(bytes.Equal(data, assembled))
}

func (s *ServiceTestSuite) TestResume_SkipsChunkUploadedMeanwhile() {
	// arrange
	data := testData(500 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)
	chunks := chunksOf(data, info.ChunkSize)
	s.Require().Len(chunks, 2)

	s.Require().ErrorIs(s.service.UploadChunk(context.Background(), info.Id, 0, chunks[0], failingTransport), ErrChunkTransport)
	s.Require().ErrorIs(s.service.UploadChunk(context.Background(), info.Id, 1, chunks[1], failingTransport), ErrChunkTransport)

	started := make(chan struct{})
	gate := make(chan struct{})
	var resent []int
	gated := func(_ context.Context, _ []byte, chunkIndex int, _ SessionInfo) error {
		if chunkIndex == 0 {
			close(started)
			<-gate
		}
		resent = append(resent, chunkIndex)
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- s.service.Resume(context.Background(), info.Id, gated)
	}()

	// act
	<-started
	s.Require().NoError(s.service.UploadChunk(context.Background(), info.Id, 1, chunks[1], okTransport))
	close(gate)
	err = <-done

	// assert
	s.Require().NoError(err)
	s.Equal([]int{0}, resent)

	progress, err := s.service.Progress(info.Id)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, progress.Status)

	assembled, err := s.service.Assemble(info.Id)
	s.Require().NoError(err)
	s.True(bytes.Equal(data, assembled))
}

func (s *ServiceTestSuite) TestResume_MissingChunkData() {
	// arrange
	data := testData(700 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)
	chunks := chunksOf(data, info.ChunkSize)

	// chunk 1 was never attempted, so there is no buffer to resend
	s.Require().NoError(s.service.UploadChunk(context.Background(), info.Id, 0, chunks[0], okTransport))

	// act
	err = s.service.Resume(context.Background(), info.Id, okTransport)

	// assert
	s.ErrorIs(err, ErrChunkDataMissing)
}

func (s *ServiceTestSuite) TestResume_CompletedSessionIsNoop() {
	// arrange
	data := testData(300 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)
	s.Require().NoError(s.uploadAll(info.Id, chunksOf(data, info.ChunkSize), okTransport))

	called := false
	transport := func(_ context.Context, _ []byte, _ int, _ SessionInfo) error {
		called = true
		return nil
	}

	// act
	err = s.service.Resume(context.Background(), info.Id, transport)

	// assert
	s.Require().NoError(err)
	s.False(called)
}

func (s *ServiceTestSuite) TestVerifyIntegrity_DetectsCorruption() {
	// arrange
	data := testData(300 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)
	s.Require().NoError(s.uploadAll(info.Id, chunksOf(data, info.ChunkSize), okTransport))

	ok, err := s.service.VerifyIntegrity(info.Id)
	s.Require().NoError(err)
	s.Require().True(ok)

	// act
	s.service.mu.Lock()
	session, found := s.service.store.get(info.Id)
	s.Require().True(found)
	session.uploaded[0].Data[0] ^= 0xff
	s.service.mu.Unlock()

	// assert
	ok, err = s.service.VerifyIntegrity(info.Id)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.service.Assemble(info.Id)
	s.ErrorIs(err, ErrIntegrity)
}

func (s *ServiceTestSuite) TestAssemble_PreservesIndexOrder() {
	// arrange
	data := testData(700 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)
	chunks := chunksOf(data, info.ChunkSize)

	// upload out of order, assembly must still follow the index order
	s.Require().NoError(s.service.UploadChunk(context.Background(), info.Id, 2, chunks[2], okTransport))
	s.Require().NoError(s.service.UploadChunk(context.Background(), info.Id, 0, chunks[0], okTransport))
	s.Require().NoError(s.service.UploadChunk(context.Background(), info.Id, 1, chunks[1], okTransport))

	// act
	assembled, err := s.service.Assemble(info.Id)

	// assert
	s.Require().NoError(err)
	s.True(bytes.Equal(data, assembled))
}

func (s *ServiceTestSuite) TestCancel_RejectsFurtherChunks() {
	// arrange
	data := testData(300 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)

	// act
	err = s.service.Cancel(context.Background(), info.Id)

	// assert
	s.Require().NoError(err)
	s.Equal(1, s.sink.countByName("upload_cancelled"))

	err = s.service.UploadChunk(context.Background(), info.Id, 0, []byte("data"), okTransport)
	s.ErrorIs(err, ErrSessionCancelled)

	// cancelling again is a no-op
	s.Require().NoError(s.service.Cancel(context.Background(), info.Id))
	s.Equal(1, s.sink.countByName("upload_cancelled"))
}

func (s *ServiceTestSuite) TestCancel_WinsOverInFlightChunk() {
	// arrange
	data := testData(100 * 1024)
	info, err := s.service.CreateSession("file-1", int64(len(data)), "file.bin", "user-1")
	s.Require().NoError(err)

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := func(_ context.Context, _ []byte, _ int, _ SessionInfo) error {
		close(started)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- s.service.UploadChunk(context.Background(), info.Id, 0, data, blocking)
	}()

	// act
	<-started
	s.Require().NoError(s.service.Cancel(context.Background(), info.Id))
	close(release)
	err = <-done

	// assert
	s.ErrorIs(err, ErrSessionCancelled)
	s.Equal(1, s.sink.countByName("upload_cancelled"))
	s.Equal(0, s.sink.countByName("upload_completed"))

	progress, err := s.service.Progress(info.Id)
	s.Require().NoError(err)
	s.Equal(StatusCancelled, progress.Status)
}

func (s *ServiceTestSuite) TestCancel_CleansUpAfterGracePeriod() {
	// arrange
	info, err := s.service.CreateSession("file-1", 300*1024, "file.bin", "user-1")
	s.Require().NoError(err)

	// act
	err = s.service.Cancel(context.Background(), info.Id)
	s.Require().NoError(err)

	// assert
	s.Require().Eventually(func() bool {
		s.setTime(s.now.Add(2 * time.Second))
		_, err := s.service.Progress(info.Id)
		return errors.Is(err, ErrSessionNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServiceTestSuite) TestCleanup_IdempotentAndReleasesReservation() {
	// arrange
	released := 0
	s.service.SetCleanupHook(func(_ uuid.UUID) { released++ })

	info, err := s.service.CreateSession("file-1", 300*1024, "file.bin", "user-1")
	s.Require().NoError(err)

	// act
	s.service.Cleanup(context.Background(), info.Id)
	s.service.Cleanup(context.Background(), info.Id)

	// assert
	s.Equal(1, released)
	_, err = s.service.Progress(info.Id)
	s.ErrorIs(err, ErrSessionNotFound)
}

func (s *ServiceTestSuite) TestSweepStale_RemovesOnlyStaleSessions() {
	// arrange
	stale, err := s.service.CreateSession("file-1", 300*1024, "stale.bin", "user-1")
	s.Require().NoError(err)

	s.setTime(s.now.Add(25 * time.Hour))
	fresh, err := s.service.CreateSession("file-2", 300*1024, "fresh.bin", "user-1")
	s.Require().NoError(err)

	// act
	swept := s.service.SweepStale(context.Background())

	// assert
	s.Equal(1, swept)

	_, err = s.service.Progress(stale.Id)
	s.ErrorIs(err, ErrSessionNotFound)

	_, err = s.service.Progress(fresh.Id)
	s.NoError(err)
}
