package queries

import (
	"context"

	"github.com/The127/ioc"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/admission"
)

type ListActiveUploads struct{}

type ListActiveUploadsResponse struct {
	Items []admission.ActiveUpload
}

func HandleListActiveUploads(ctx context.Context, query ListActiveUploads) (*ListActiveUploadsResponse, error) {
	scope := middlewares.GetScope(ctx)

	controller := ioc.GetDependency[*admission.Controller](scope)

	return &ListActiveUploadsResponse{
		Items: controller.ActiveUploads(),
	}, nil
}
