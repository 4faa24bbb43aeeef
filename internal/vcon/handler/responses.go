package handler

import (
	"net/http"

	"vcon/internal/vcon/service"
	"vcon/pkg/platform/httputil"
	"vcon/pkg/vcon"
)

// ValidateResponse is returned by POST /vcons/validate.
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidationErrorResponse extends the error envelope with validator messages.
type ValidationErrorResponse struct {
	httputil.ErrorResponse
	Errors []string `json:"errors"`
}

// VerifyBatchResponse is returned by POST /vcons/verify.
type VerifyBatchResponse struct {
	Results []*service.VerifyResult `json:"results"`
}

// writeDocument writes the document's own serialization so key order and
// the signature envelope are preserved.
func writeDocument(w http.ResponseWriter, status int, v *vcon.Vcon) error {
	data, err := v.ToJSON()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/vcon+json")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}
