package uploadhandlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/The127/ioc"
	"github.com/The127/mediatr"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/the127/stevedore/internal/commands"
	"github.com/the127/stevedore/internal/jsontypes"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/queries"
	"github.com/the127/stevedore/internal/utils/apiError"
	"github.com/the127/stevedore/internal/utils/decoding"
	"github.com/the127/stevedore/internal/utils/validate"
)

// Chunk bodies are bounded by the largest chunk tier plus some slack.
const maxChunkBodyBytes = 4 * 1024 * 1024

type CreateUploadRequest struct {
	FileId   string `json:"fileId" validate:"required"`
	FileName string `json:"fileName" validate:"required"`
	FileSize int64  `json:"fileSize" validate:"required,gt=0"`
	UserId   string `json:"userId" validate:"required"`
}

type CreateUploadResponse struct {
	SessionId    uuid.UUID `json:"sessionId"`
	ChunkSize    int64     `json:"chunkSize"`
	TotalChunks  int       `json:"totalChunks"`
	UseStreaming bool      `json:"useStreaming"`
}

func CreateUpload(w http.ResponseWriter, r *http.Request) {
	var dto CreateUploadRequest
	err := decoding.HttpBodyAsJson(w, r, &dto)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	err = validate.Validate(dto)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	session, err := mediatr.Send[*commands.CreateUploadSessionResponse](ctx, mediator, commands.CreateUploadSession{
		FileId:   dto.FileId,
		FileName: dto.FileName,
		FileSize: dto.FileSize,
		UserId:   dto.UserId,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	response := CreateUploadResponse{
		SessionId:    session.SessionId,
		ChunkSize:    session.ChunkSize,
		TotalChunks:  session.TotalChunks,
		UseStreaming: session.UseStreaming,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type ProgressResponse struct {
	SessionId      uuid.UUID `json:"sessionId"`
	FileId         string    `json:"fileId"`
	FileName       string    `json:"fileName"`
	Status         string    `json:"status"`
	UploadedChunks int       `json:"uploadedChunks"`
	FailedChunks   int       `json:"failedChunks"`
	TotalChunks    int       `json:"totalChunks"`
	Progress       float64   `json:"progress"`
	StartTime      time.Time `json:"startTime"`
	LastActivity   time.Time `json:"lastActivity"`
}

func progressResponse(snapshot jsontypes.ProgressSnapshot) ProgressResponse {
	return ProgressResponse{
		SessionId:      snapshot.SessionId,
		FileId:         snapshot.FileId,
		FileName:       snapshot.FileName,
		Status:         snapshot.Status,
		UploadedChunks: snapshot.UploadedChunks,
		FailedChunks:   snapshot.FailedChunks,
		TotalChunks:    snapshot.TotalChunks,
		Progress:       snapshot.Progress,
		StartTime:      snapshot.StartTime,
		LastActivity:   snapshot.LastActivity,
	}
}

func UploadChunk(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/octet-stream" {
		apiError.HandleHttpError(w, fmt.Errorf("expected application/octet-stream: %w", apiError.ErrApiUnsupportedMediaType))
		return
	}

	sessionId, chunkIndex, err := sessionVars(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChunkBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		apiError.HandleHttpError(w, fmt.Errorf("failed to read chunk body: %w", apiError.ErrApiBadRequest))
		return
	}

	if len(data) == 0 {
		apiError.HandleHttpError(w, fmt.Errorf("chunk body is empty: %w", apiError.ErrApiBadRequest))
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	result, err := mediatr.Send[*commands.UploadChunkResponse](ctx, mediator, commands.UploadChunk{
		SessionId:  sessionId,
		ChunkIndex: chunkIndex,
		Data:       data,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	err = json.NewEncoder(w).Encode(ProgressResponse{
		SessionId:      result.Progress.SessionId,
		FileId:         result.Progress.FileId,
		FileName:       result.Progress.FileName,
		Status:         string(result.Progress.Status),
		UploadedChunks: result.Progress.UploadedChunks,
		FailedChunks:   result.Progress.FailedChunks,
		TotalChunks:    result.Progress.TotalChunks,
		Progress:       result.Progress.Fraction,
		StartTime:      result.Progress.StartTime,
		LastActivity:   result.Progress.LastActivity,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

func ResumeUpload(w http.ResponseWriter, r *http.Request) {
	sessionId, err := sessionIdVar(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	result, err := mediatr.Send[*commands.ResumeUploadResponse](ctx, mediator, commands.ResumeUpload{
		SessionId: sessionId,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(ProgressResponse{
		SessionId:      result.Progress.SessionId,
		FileId:         result.Progress.FileId,
		FileName:       result.Progress.FileName,
		Status:         string(result.Progress.Status),
		UploadedChunks: result.Progress.UploadedChunks,
		FailedChunks:   result.Progress.FailedChunks,
		TotalChunks:    result.Progress.TotalChunks,
		Progress:       result.Progress.Fraction,
		StartTime:      result.Progress.StartTime,
		LastActivity:   result.Progress.LastActivity,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type CompleteUploadResponse struct {
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

func CompleteUpload(w http.ResponseWriter, r *http.Request) {
	sessionId, err := sessionIdVar(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	result, err := mediatr.Send[*commands.CompleteUploadResponse](ctx, mediator, commands.CompleteUpload{
		SessionId: sessionId,
		Mimetype:  r.URL.Query().Get("mimetype"),
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	err = json.NewEncoder(w).Encode(CompleteUploadResponse{
		Digest: result.Digest,
		Size:   result.Size,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

func GetProgress(w http.ResponseWriter, r *http.Request) {
	sessionId, err := sessionIdVar(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	result, err := mediatr.Send[*queries.GetUploadProgressResponse](ctx, mediator, queries.GetUploadProgress{
		SessionId: sessionId,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(progressResponse(result.Snapshot))
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

func CancelUpload(w http.ResponseWriter, r *http.Request) {
	sessionId, err := sessionIdVar(r)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	_, err = mediatr.Send[*commands.CancelUploadResponse](ctx, mediator, commands.CancelUpload{
		SessionId: sessionId,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func sessionIdVar(r *http.Request) (uuid.UUID, error) {
	vars := mux.Vars(r)
	sessionId, err := uuid.Parse(vars["session"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("session id must be a valid uuid: %w", apiError.ErrApiBadRequest)
	}
	return sessionId, nil
}

func sessionVars(r *http.Request) (uuid.UUID, int, error) {
	sessionId, err := sessionIdVar(r)
	if err != nil {
		return uuid.Nil, 0, err
	}

	vars := mux.Vars(r)
	chunkIndex, err := strconv.Atoi(vars["index"])
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("chunk index must be an integer: %w", apiError.ErrApiBadRequest)
	}

	return sessionId, chunkIndex, nil
}
