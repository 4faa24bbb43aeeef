package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/requestcontext"
	"vcon/pkg/vcon"
)

// Verification outcomes, also used as metric labels.
const (
	ResultValid    = "valid"
	ResultInvalid  = "invalid"
	ResultUnsigned = "unsigned"
	ResultMissing  = "missing"
)

// VerifyResult reports the signature state of one stored document.
type VerifyResult struct {
	UUID   string `json:"uuid"`
	Found  bool   `json:"found"`
	Signed bool   `json:"signed"`
	Valid  bool   `json:"valid"`
	KeyID  string `json:"kid,omitempty"`
	Result string `json:"result"`
}

// Verify checks a stored document against the gateway key.
func (s *Service) Verify(ctx context.Context, id string) (*VerifyResult, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("verify", start)
	ctx, span := s.tracer.Start(ctx, "vcon.Verify", trace.WithAttributes(attribute.String("vcon.uuid", id)))
	defer span.End()

	if s.signingKey == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeUnavailable, "signing key not configured"))
	}
	v, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	res := s.verifyOne(id, v)
	span.SetAttributes(attribute.String("vcon.verify_result", res.Result))
	return res, nil
}

// VerifyBatch verifies up to MaxBatchSize stored documents concurrently.
// Results follow the order of ids; unknown uuids are reported, not failed.
func (s *Service) VerifyBatch(ctx context.Context, ids []string) ([]*VerifyResult, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("verify_batch", start)
	ctx, span := s.tracer.Start(ctx, "vcon.VerifyBatch", trace.WithAttributes(attribute.Int("vcon.batch_size", len(ids))))
	defer span.End()

	if s.signingKey == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeUnavailable, "signing key not configured"))
	}
	if len(ids) == 0 {
		return nil, s.fail(span, dErrors.New(dErrors.CodeValidation, "uuids must not be empty"))
	}
	if len(ids) > MaxBatchSize {
		return nil, s.fail(span, dErrors.Newf(dErrors.CodeValidation, "at most %d uuids per batch", MaxBatchSize))
	}

	docs, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vcons"))
	}

	results := make([]*VerifyResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.verifyLimit)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.verifyOne(id, docs[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification cancelled"))
	}

	s.logger.InfoContext(ctx, "vcon batch verified",
		"request_id", requestcontext.RequestID(ctx),
		"count", len(ids),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// verifyOne only reads v, so a document listed twice in a batch may be
// verified by two goroutines at once.
func (s *Service) verifyOne(id string, v *vcon.Vcon) *VerifyResult {
	res := &VerifyResult{UUID: id}
	switch {
	case v == nil:
		res.Result = ResultMissing
	case !v.IsSigned():
		res.Found = true
		res.Result = ResultUnsigned
	default:
		res.Found = true
		res.Signed = true
		res.KeyID, _ = v.KeyID()
		res.Valid = v.Verify(s.signingKey.Public())
		res.Result = ResultInvalid
		if res.Valid {
			res.Result = ResultValid
		}
	}
	s.metrics.RecordVerification(res.Result)
	return res
}
