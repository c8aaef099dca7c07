package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type storedObject struct {
	data []byte
	meta ObjectMeta
}

type memoryBackend struct {
	objects   map[string]storedObject
	staged    map[uuid.UUID]map[int][]byte
	objectsMu *sync.RWMutex
	stagedMu  *sync.Mutex
}

func NewMemoryBackend() Backend {
	return &memoryBackend{
		objects:   make(map[string]storedObject),
		staged:    make(map[uuid.UUID]map[int][]byte),
		objectsMu: &sync.RWMutex{},
		stagedMu:  &sync.Mutex{},
	}
}

func (b *memoryBackend) StageChunk(ctx context.Context, sessionId uuid.UUID, chunkIndex int, data []byte) error {
	b.stagedMu.Lock()
	defer b.stagedMu.Unlock()

	chunks, ok := b.staged[sessionId]
	if !ok {
		chunks = make(map[int][]byte)
		b.staged[sessionId] = chunks
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	chunks[chunkIndex] = buf
	return nil
}

func (b *memoryBackend) StoreObject(ctx context.Context, sessionId uuid.UUID, data []byte, meta ObjectMeta) (string, error) {
	sum := sha256.Sum256(data)
	digest := fmt.Sprintf("sha256:%s", hex.EncodeToString(sum[:]))

	buf := make([]byte, len(data))
	copy(buf, data)

	b.objectsMu.Lock()
	b.objects[digest] = storedObject{
		data: buf,
		meta: meta,
	}
	b.objectsMu.Unlock()

	return digest, b.DiscardStaged(ctx, sessionId)
}

func (b *memoryBackend) DiscardStaged(ctx context.Context, sessionId uuid.UUID) error {
	b.stagedMu.Lock()
	defer b.stagedMu.Unlock()

	delete(b.staged, sessionId)
	return nil
}

func (b *memoryBackend) GetObject(ctx context.Context, digest string) ([]byte, ObjectMeta, bool) {
	b.objectsMu.RLock()
	defer b.objectsMu.RUnlock()

	object, ok := b.objects[digest]
	if !ok {
		return nil, ObjectMeta{}, false
	}

	return object.data, object.meta, true
}
