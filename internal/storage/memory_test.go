package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type MemoryBackendTestSuite struct {
	suite.Suite

	backend Backend
}

func TestMemoryBackendTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(MemoryBackendTestSuite))
}

func (s *MemoryBackendTestSuite) SetupTest() {
	s.backend = NewMemoryBackend()
}

func (s *MemoryBackendTestSuite) TestStoreObject() {
	// arrange
	ctx := context.Background()
	data := []byte("assembled upload")
	sum := sha256.Sum256(data)
	expectedDigest := fmt.Sprintf("sha256:%s", hex.EncodeToString(sum[:]))

	// act
	digest, err := s.backend.StoreObject(ctx, uuid.New(), data, ObjectMeta{
		OriginalName: "file.bin",
		Mimetype:     "application/octet-stream",
	})

	// assert
	s.Require().NoError(err)
	s.Equal(expectedDigest, digest)

	stored, meta, ok := s.backend.GetObject(ctx, digest)
	s.Require().True(ok)
	s.Equal(data, stored)
	s.Equal("file.bin", meta.OriginalName)
}

func (s *MemoryBackendTestSuite) TestGetObjectMissing() {
	// act
	_, _, ok := s.backend.GetObject(context.Background(), "sha256:unknown")

	// assert
	s.False(ok)
}

func (s *MemoryBackendTestSuite) TestStageChunkCopiesBuffer() {
	// arrange
	ctx := context.Background()
	sessionId := uuid.New()
	data := []byte("chunk data")

	// act
	err := s.backend.StageChunk(ctx, sessionId, 0, data)
	data[0] = 'X'

	// assert
	s.Require().NoError(err)
}

func (s *MemoryBackendTestSuite) TestDiscardStaged() {
	// arrange
	ctx := context.Background()
	sessionId := uuid.New()
	s.Require().NoError(s.backend.StageChunk(ctx, sessionId, 0, []byte("chunk")))

	// act
	err := s.backend.DiscardStaged(ctx, sessionId)

	// assert
	s.Require().NoError(err)
}
