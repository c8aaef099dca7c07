package queries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/jsontypes"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/kv"
	"github.com/the127/stevedore/internal/services/transfer"
	"github.com/the127/stevedore/internal/utils/apiError"
)

type GetUploadProgress struct {
	SessionId uuid.UUID
}

type GetUploadProgressResponse struct {
	Snapshot jsontypes.ProgressSnapshot
}

func HandleGetUploadProgress(ctx context.Context, query GetUploadProgress) (*GetUploadProgressResponse, error) {
	scope := middlewares.GetScope(ctx)

	transferService := ioc.GetDependency[*transfer.Service](scope)

	progress, err := transferService.Progress(query.SessionId)
	if err == nil {
		return &GetUploadProgressResponse{
			Snapshot: jsontypes.ProgressSnapshot{
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
			},
		}, nil
	}

	if !errors.Is(err, transfer.ErrSessionNotFound) {
		return nil, err
	}

	// The session may already be cleaned up, fall back to the published
	// snapshot.
	kvStore := ioc.GetDependency[kv.Store](scope)
	value, ok, kvErr := kvStore.Get(ctx, transfer.SnapshotKey(query.SessionId))
	if kvErr != nil || !ok {
		return nil, fmt.Errorf("session %s: %w", query.SessionId, apiError.ErrApiSessionNotFound)
	}

	var snapshot jsontypes.ProgressSnapshot
	err = json.Unmarshal([]byte(value), &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress snapshot: %w", err)
	}

	return &GetUploadProgressResponse{
		Snapshot: snapshot,
	}, nil
}
