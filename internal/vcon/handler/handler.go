package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vcon/internal/vcon/service"
	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/platform/httputil"
	"vcon/pkg/requestcontext"
	"vcon/pkg/vcon"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the vCon operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, raw []byte) (*vcon.Vcon, error)
	Get(ctx context.Context, id string) (*vcon.Vcon, error)
	Validate(ctx context.Context, raw []byte) (bool, []string)
	AddTag(ctx context.Context, id, key, value string) (*vcon.Vcon, error)
	Sign(ctx context.Context, id string) (*vcon.Vcon, error)
	Verify(ctx context.Context, id string) (*service.VerifyResult, error)
	VerifyBatch(ctx context.Context, ids []string) ([]*service.VerifyResult, error)
	PublicKeyPEM() ([]byte, string, error)
}

// Handler wires vCon endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a vCon handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the vCon endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/vcons", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Post("/validate", h.HandleValidate)
		r.Post("/verify", h.HandleVerifyBatch)
		r.Get("/{uuid}", h.HandleGet)
		r.Post("/{uuid}/tags", h.HandleAddTag)
		r.Post("/{uuid}/sign", h.HandleSign)
		r.Get("/{uuid}/verify", h.HandleVerify)
	})
	r.Get("/keys/signing", h.HandlePublicKey)
}

// HandleCreate handles POST /vcons.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	body, ok := httputil.ReadBody(w, r, h.logger)
	if !ok {
		return
	}

	v, err := h.service.Create(ctx, body)
	if err != nil {
		h.writeError(ctx, w, "create vcon failed", err)
		return
	}

	w.Header().Set("Location", "/vcons/"+v.UUID())
	h.respond(ctx, w, http.StatusCreated, v)
	h.logger.InfoContext(ctx, "vcon stored",
		"request_id", requestcontext.RequestID(ctx),
		"uuid", v.UUID(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// HandleGet handles GET /vcons/{uuid}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.service.Get(ctx, chi.URLParam(r, "uuid"))
	if err != nil {
		h.writeError(ctx, w, "get vcon failed", err)
		return
	}
	h.respond(ctx, w, http.StatusOK, v)
}

// HandleValidate handles POST /vcons/validate. Invalid documents are a
// successful response with valid=false.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := httputil.ReadBody(w, r, h.logger)
	if !ok {
		return
	}
	valid, errs := h.service.Validate(r.Context(), body)
	if errs == nil {
		errs = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, ValidateResponse{Valid: valid, Errors: errs})
}

// HandleAddTag handles POST /vcons/{uuid}/tags.
func (h *Handler) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[TagRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.AddTag(ctx, chi.URLParam(r, "uuid"), req.Key, req.Value)
	if err != nil {
		h.writeError(ctx, w, "tag vcon failed", err)
		return
	}
	h.respond(ctx, w, http.StatusOK, v)
}

// HandleSign handles POST /vcons/{uuid}/sign.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.service.Sign(ctx, chi.URLParam(r, "uuid"))
	if err != nil {
		h.writeError(ctx, w, "sign vcon failed", err)
		return
	}
	h.respond(ctx, w, http.StatusOK, v)
}

// HandleVerify handles GET /vcons/{uuid}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.Verify(ctx, chi.URLParam(r, "uuid"))
	if err != nil {
		h.writeError(ctx, w, "verify vcon failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleVerifyBatch handles POST /vcons/verify.
func (h *Handler) HandleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[VerifyBatchRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	results, err := h.service.VerifyBatch(ctx, req.UUIDs)
	if err != nil {
		h.writeError(ctx, w, "batch verify failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyBatchResponse{Results: results})
}

// HandlePublicKey handles GET /keys/signing.
func (h *Handler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	pemBytes, kid, err := h.service.PublicKeyPEM()
	if err != nil {
		h.writeError(r.Context(), w, "public key unavailable", err)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	w.Header().Set("X-Key-ID", kid)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pemBytes)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, status int, v *vcon.Vcon) {
	if err := writeDocument(w, status, v); err != nil {
		h.logger.ErrorContext(ctx, "failed to write vcon",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{"request_id", requestcontext.RequestID(ctx), "code", code, "error", err}
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			ErrorResponse: httputil.ErrorResponse{Error: string(dErrors.CodeValidation), ErrorDescription: "vcon failed validation"},
			Errors:        verr.Errors,
		})
		return
	}
	httputil.WriteError(w, err)
}
