package setup

import (
	"fmt"

	"github.com/The127/ioc"
	"github.com/the127/stevedore/internal/config"
	"github.com/the127/stevedore/internal/storage"
)

func Blob(dc *ioc.DependencyCollection, blobConfig config.BlobStorageConfig) storage.Backend {
	var backend storage.Backend
	switch blobConfig.Mode {
	case config.BlobStorageModeInMemory:
		backend = storage.NewMemoryBackend()

	default:
		panic(fmt.Errorf("unsupported blob storage mode: %s", blobConfig.Mode))
	}

	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) storage.Backend {
		return backend
	})

	return backend
}
