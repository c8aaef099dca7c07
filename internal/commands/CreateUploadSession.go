package commands

import (
	"context"
	"fmt"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/admission"
	"github.com/the127/stevedore/internal/services/transfer"
	"github.com/the127/stevedore/internal/utils/apiError"
)

type CreateUploadSession struct {
	FileId   string
	FileName string
	FileSize int64
	UserId   string
}

type CreateUploadSessionResponse struct {
	SessionId    uuid.UUID
	ChunkSize    int64
	TotalChunks  int
	UseStreaming bool
}

func HandleCreateUploadSession(ctx context.Context, command CreateUploadSession) (*CreateUploadSessionResponse, error) {
	scope := middlewares.GetScope(ctx)

	controller := ioc.GetDependency[*admission.Controller](scope)

	decision := controller.CanAcceptUpload(command.FileSize, command.FileName)
	if !decision.Allowed {
		return nil, admissionError(decision)
	}

	transferService := ioc.GetDependency[*transfer.Service](scope)
	session, err := transferService.CreateSession(command.FileId, command.FileSize, command.FileName, command.UserId)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	controller.RegisterUpload(session.Id, command.FileSize, command.FileName)

	return &CreateUploadSessionResponse{
		SessionId:    session.Id,
		ChunkSize:    session.ChunkSize,
		TotalChunks:  session.TotalChunks,
		UseStreaming: decision.UseStreaming,
	}, nil
}

func admissionError(decision admission.Decision) error {
	switch decision.Code {
	case admission.CodeFileTooLarge:
		return fmt.Errorf("%s: %w", decision.Reason, apiError.ErrApiPayloadTooLarge)

	case admission.CodeTooManyUploads:
		return fmt.Errorf("%s: %w", decision.Reason, apiError.ErrApiTooManyUploads)

	default:
		return fmt.Errorf("%s: %w", decision.Reason, apiError.ErrApiServiceUnavailable)
	}
}
