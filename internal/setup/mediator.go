package setup

import (
	"github.com/The127/ioc"
	"github.com/The127/mediatr"
	"github.com/the127/stevedore/internal/commands"
	"github.com/the127/stevedore/internal/queries"
)

func Mediator(dc *ioc.DependencyCollection) {
	mediator := mediatr.NewMediator()

	mediatr.RegisterHandler(mediator, commands.HandleCreateUploadSession)
	mediatr.RegisterHandler(mediator, commands.HandleUploadChunk)
	mediatr.RegisterHandler(mediator, commands.HandleResumeUpload)
	mediatr.RegisterHandler(mediator, commands.HandleCompleteUpload)
	mediatr.RegisterHandler(mediator, commands.HandleCancelUpload)
	mediatr.RegisterHandler(mediator, queries.HandleGetUploadProgress)

	mediatr.RegisterHandler(mediator, commands.HandleUpdateLimits)
	mediatr.RegisterHandler(mediator, commands.HandlePatchLimits)
	mediatr.RegisterHandler(mediator, commands.HandleUpdateTransferSettings)
	mediatr.RegisterHandler(mediator, queries.HandleGetTransferSettings)
	mediatr.RegisterHandler(mediator, queries.HandleGetMemoryStats)
	mediatr.RegisterHandler(mediator, queries.HandleListActiveUploads)

	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) mediatr.Mediator {
		return mediator
	})
}
