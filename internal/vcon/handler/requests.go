package handler

import (
	"strings"

	"vcon/internal/vcon/service"
	dErrors "vcon/pkg/domain-errors"
)

// TagRequest is the body of POST /vcons/{uuid}/tags.
type TagRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Validate trims and checks the request.
func (r *TagRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Key = strings.TrimSpace(r.Key)
	if r.Key == "" {
		return dErrors.New(dErrors.CodeValidation, "key is required")
	}
	if len(r.Key) > 256 {
		return dErrors.New(dErrors.CodeValidation, "key must be at most 256 characters")
	}
	return nil
}

// VerifyBatchRequest is the body of POST /vcons/verify.
type VerifyBatchRequest struct {
	UUIDs []string `json:"uuids"`
}

// Validate checks the batch bounds.
func (r *VerifyBatchRequest) Validate() error {
	if r == nil || len(r.UUIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "uuids must not be empty")
	}
	if len(r.UUIDs) > service.MaxBatchSize {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d uuids per batch", service.MaxBatchSize)
	}
	for i, id := range r.UUIDs {
		if strings.TrimSpace(id) == "" {
			return dErrors.Newf(dErrors.CodeValidation, "uuids[%d] is empty", i)
		}
	}
	return nil
}
