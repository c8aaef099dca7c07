package adminhandlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/The127/ioc"
	"github.com/The127/mediatr"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/commands"
	"github.com/the127/stevedore/internal/handlers"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/queries"
	"github.com/the127/stevedore/internal/services/admission"
	"github.com/the127/stevedore/internal/services/transfer"
	"github.com/the127/stevedore/internal/utils/apiError"
	"github.com/the127/stevedore/internal/utils/decoding"
	"github.com/the127/stevedore/internal/utils/validate"
)

type LimitsResponse struct {
	MaxFileSize          int64   `json:"maxFileSize"`
	MaxConcurrentUploads int     `json:"maxConcurrentUploads"`
	MaxTotalMemory       int64   `json:"maxTotalMemory"`
	StreamingThreshold   int64   `json:"streamingThreshold"`
	WarningPct           float64 `json:"warningPct"`
	CriticalPct          float64 `json:"criticalPct"`
	EmergencyPct         float64 `json:"emergencyPct"`
}

func limitsResponse(limits admission.Limits) LimitsResponse {
	return LimitsResponse{
		MaxFileSize:          limits.MaxFileSize,
		MaxConcurrentUploads: limits.MaxConcurrentUploads,
		MaxTotalMemory:       limits.MaxTotalMemory,
		StreamingThreshold:   limits.StreamingThreshold,
		WarningPct:           limits.WarningPct,
		CriticalPct:          limits.CriticalPct,
		EmergencyPct:         limits.EmergencyPct,
	}
}

func GetLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := middlewares.GetScope(ctx)

	controller := ioc.GetDependency[*admission.Controller](scope)

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(limitsResponse(controller.Limits()))
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type UpdateLimitsRequest struct {
	MaxFileSize          int64   `json:"maxFileSize" validate:"required,gt=0"`
	MaxConcurrentUploads int     `json:"maxConcurrentUploads" validate:"required,gt=0"`
	MaxTotalMemory       int64   `json:"maxTotalMemory" validate:"required,gt=0"`
	StreamingThreshold   int64   `json:"streamingThreshold" validate:"required,gt=0"`
	WarningPct           float64 `json:"warningPct" validate:"required,gt=0,lt=100"`
	CriticalPct          float64 `json:"criticalPct" validate:"required,gt=0,lt=100"`
	EmergencyPct         float64 `json:"emergencyPct" validate:"required,gt=0,lt=100"`
}

func UpdateLimits(w http.ResponseWriter, r *http.Request) {
	var dto UpdateLimitsRequest
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

	result, err := mediatr.Send[*commands.UpdateLimitsResponse](ctx, mediator, commands.UpdateLimits{
		Limits: admission.Limits{
			MaxFileSize:          dto.MaxFileSize,
			MaxConcurrentUploads: dto.MaxConcurrentUploads,
			MaxTotalMemory:       dto.MaxTotalMemory,
			StreamingThreshold:   dto.StreamingThreshold,
			WarningPct:           dto.WarningPct,
			CriticalPct:          dto.CriticalPct,
			EmergencyPct:         dto.EmergencyPct,
		},
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(limitsResponse(result.Limits))
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type PatchLimitsRequest struct {
	MaxFileSize          *int64   `json:"maxFileSize" validate:"omitempty,gt=0"`
	MaxConcurrentUploads *int     `json:"maxConcurrentUploads" validate:"omitempty,gt=0"`
	MaxTotalMemory       *int64   `json:"maxTotalMemory" validate:"omitempty,gt=0"`
	StreamingThreshold   *int64   `json:"streamingThreshold" validate:"omitempty,gt=0"`
	WarningPct           *float64 `json:"warningPct" validate:"omitempty,gt=0,lt=100"`
	CriticalPct          *float64 `json:"criticalPct" validate:"omitempty,gt=0,lt=100"`
	EmergencyPct         *float64 `json:"emergencyPct" validate:"omitempty,gt=0,lt=100"`
}

func PatchLimits(w http.ResponseWriter, r *http.Request) {
	var dto PatchLimitsRequest
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

	result, err := mediatr.Send[*commands.PatchLimitsResponse](ctx, mediator, commands.PatchLimits{
		MaxFileSize:          dto.MaxFileSize,
		MaxConcurrentUploads: dto.MaxConcurrentUploads,
		MaxTotalMemory:       dto.MaxTotalMemory,
		StreamingThreshold:   dto.StreamingThreshold,
		WarningPct:           dto.WarningPct,
		CriticalPct:          dto.CriticalPct,
		EmergencyPct:         dto.EmergencyPct,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(limitsResponse(result.Limits))
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type TransferSettingsResponse struct {
	ChunkTimeoutSecs    int `json:"chunkTimeoutSecs"`
	MaxRetries          int `json:"maxRetries"`
	RetryBaseDelayMilli int `json:"retryBaseDelayMilli"`
}

func transferSettingsResponse(settings transfer.Settings) TransferSettingsResponse {
	return TransferSettingsResponse{
		ChunkTimeoutSecs:    int(settings.ChunkTimeout / time.Second),
		MaxRetries:          settings.MaxRetries,
		RetryBaseDelayMilli: int(settings.RetryBaseDelay / time.Millisecond),
	}
}

func GetTransferSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	result, err := mediatr.Send[*queries.GetTransferSettingsResponse](ctx, mediator, queries.GetTransferSettings{})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(transferSettingsResponse(result.Settings))
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type UpdateTransferSettingsRequest struct {
	ChunkTimeoutSecs    int `json:"chunkTimeoutSecs" validate:"required,gt=0"`
	MaxRetries          int `json:"maxRetries" validate:"required,gt=0"`
	RetryBaseDelayMilli int `json:"retryBaseDelayMilli" validate:"required,gt=0"`
}

func UpdateTransferSettings(w http.ResponseWriter, r *http.Request) {
	var dto UpdateTransferSettingsRequest
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

	result, err := mediatr.Send[*commands.UpdateTransferSettingsResponse](ctx, mediator, commands.UpdateTransferSettings{
		Settings: transfer.Settings{
			ChunkTimeout:   time.Duration(dto.ChunkTimeoutSecs) * time.Second,
			MaxRetries:     dto.MaxRetries,
			RetryBaseDelay: time.Duration(dto.RetryBaseDelayMilli) * time.Millisecond,
		},
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(transferSettingsResponse(result.Settings))
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type MemoryStatsResponse struct {
	HeapPct       float64        `json:"heapPct"`
	SystemPct     float64        `json:"systemPct"`
	ActiveCount   int            `json:"activeCount"`
	ReservedBytes int64          `json:"reservedBytes"`
	Limits        LimitsResponse `json:"limits"`
	LimitsResetAt *time.Time     `json:"limitsResetAt,omitempty"`
}

func GetMemoryStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	result, err := mediatr.Send[*queries.GetMemoryStatsResponse](ctx, mediator, queries.GetMemoryStats{})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(MemoryStatsResponse{
		HeapPct:       result.Snapshot.HeapPct,
		SystemPct:     result.Snapshot.SystemPct,
		ActiveCount:   result.Snapshot.ActiveCount,
		ReservedBytes: result.Snapshot.ReservedBytes,
		Limits:        limitsResponse(result.Limits),
		LimitsResetAt: result.LimitsResetAt,
	})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}

type ActiveUploadResponseItem struct {
	UploadId  uuid.UUID `json:"uploadId"`
	FileSize  int64     `json:"fileSize"`
	FileName  string    `json:"fileName"`
	StartTime time.Time `json:"startTime"`
}

type ListActiveUploadsResponse handlers.PagedResponse[ActiveUploadResponseItem]

func ListActiveUploads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := middlewares.GetScope(ctx)
	mediator := ioc.GetDependency[mediatr.Mediator](scope)

	result, err := mediatr.Send[*queries.ListActiveUploadsResponse](ctx, mediator, queries.ListActiveUploads{})
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}

	response := ListActiveUploadsResponse{
		Items: make([]ActiveUploadResponseItem, len(result.Items)),
	}

	for i, item := range result.Items {
		response.Items[i] = ActiveUploadResponseItem{
			UploadId:  item.UploadId,
			FileSize:  item.FileSize,
			FileName:  item.FileName,
			StartTime: item.StartTime,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		apiError.HandleHttpError(w, err)
		return
	}
}
