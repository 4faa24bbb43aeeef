package service

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vcon/internal/vcon/events"
	"vcon/internal/vcon/metrics"
	"vcon/internal/vcon/service/mocks"
	"vcon/internal/vcon/store"
	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/optional"
	"vcon/pkg/platform/sentinel"
	"vcon/pkg/requestcontext"
	"vcon/pkg/vcon"
)

const docUUID = "0192aa73-e702-8ab0-8f2c-6b47e0b4e8a3"

func validDoc(id string) string {
	return fmt.Sprintf(`{"uuid":%q,"vcon":"0.0.1","created_at":"2024-01-01T00:00:00Z",`+
		`"parties":[{"name":"Alice"},{"name":"Bob"}],`+
		`"dialog":[{"type":"text","start":"2024-01-01T00:00:00Z","parties":[0,1],"mimetype":"text/plain","body":"hi"}],`+
		`"attachments":[],"analysis":[]}`, id)
}

func mustBuild(s *suite.Suite, raw string) *vcon.Vcon {
	v, err := vcon.BuildFromJSON(raw)
	s.Require().NoError(err)
	return v
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	store     *mocks.MockStore
	publisher *mocks.MockPublisher
	metrics   *metrics.Metrics
	key       crypto.Signer
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSuite() {
	key, _, err := vcon.GenerateKeyPair(vcon.AlgES256)
	s.Require().NoError(err)
	s.key = key
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.store = mocks.NewMockStore(ctrl)
	s.publisher = mocks.NewMockPublisher(ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.svc = New(s.store,
		WithPublisher(s.publisher),
		WithMetrics(s.metrics),
		WithSigningKey(s.key, "gateway-1"),
		WithVerifyConcurrency(2),
	)
}

func (s *ServiceSuite) TestCreate() {
	s.Run("stores a valid document and emits an event", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, v *vcon.Vcon) error {
			s.Equal(docUUID, v.UUID())
			return nil
		})
		s.publisher.EXPECT().Publish(gomock.Any(), events.New(events.TypeCreated, docUUID, s.now)).Return(nil)

		v, err := s.svc.Create(s.ctx, []byte(validDoc(docUUID)))
		s.Require().NoError(err)
		s.Equal(docUUID, v.UUID())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Created))
	})

	s.Run("malformed json is invalid input", func() {
		_, err := s.svc.Create(s.ctx, []byte(`{`))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("validation failures carry every message", func() {
		_, err := s.svc.Create(s.ctx, []byte(`{"vcon":"0.0.1","dialog":[{"type":"text","parties":[3]}]}`))
		var verr *ValidationError
		s.Require().True(errors.As(err, &verr))
		s.Equal([]string{
			"Missing required field: uuid",
			"Missing required field: created_at",
			"Dialog 0 references invalid party index: 3",
		}, verr.Errors)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate uuid is a conflict", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.svc.Create(s.ctx, []byte(validDoc(docUUID)))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("store failure is internal", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
		_, err := s.svc.Create(s.ctx, []byte(validDoc(docUUID)))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("publish failure does not fail the request", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(events.ErrBufferFull)
		_, err := s.svc.Create(s.ctx, []byte(validDoc(docUUID)))
		s.NoError(err)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.EventFailures.WithLabelValues(string(events.TypeCreated))))
	})
}

func (s *ServiceSuite) TestGet() {
	s.Run("not found", func() {
		s.store.EXPECT().Get(gomock.Any(), "nope").Return(nil, fmt.Errorf("lookup: %w", sentinel.ErrNotFound))
		_, err := s.svc.Get(s.ctx, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("blank uuid", func() {
		_, err := s.svc.Get(s.ctx, " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestValidate() {
	ok, errs := s.svc.Validate(s.ctx, []byte(validDoc(docUUID)))
	s.True(ok)
	s.Empty(errs)

	ok, errs = s.svc.Validate(s.ctx, []byte(`nope`))
	s.False(ok)
	s.Equal([]string{vcon.MsgInvalidJSON}, errs)
}

func (s *ServiceSuite) TestValidatorMimetypes() {
	svc := New(s.store, WithValidator(vcon.NewValidator(vcon.WithMimetypes("audio/wav"))))
	ok, errs := svc.Validate(s.ctx, []byte(validDoc(docUUID)))
	s.False(ok)
	s.Equal([]string{"Dialog 0 has invalid mimetype: text/plain"}, errs)
}

func (s *ServiceSuite) TestAddTag() {
	s.Run("updates the stored document", func() {
		s.store.EXPECT().Get(gomock.Any(), docUUID).Return(mustBuild(&s.Suite, validDoc(docUUID)), nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, v *vcon.Vcon) error {
			tag, ok := v.GetTag("status")
			s.True(ok)
			s.Equal("closed", tag)
			return nil
		})
		s.publisher.EXPECT().Publish(gomock.Any(), events.New(events.TypeTagged, docUUID, s.now)).Return(nil)

		_, err := s.svc.AddTag(s.ctx, docUUID, "status", "closed")
		s.Require().NoError(err)
	})

	s.Run("signed documents are immutable", func() {
		v := mustBuild(&s.Suite, validDoc(docUUID))
		s.Require().NoError(v.Sign(s.key))
		s.store.EXPECT().Get(gomock.Any(), docUUID).Return(v, nil)

		_, err := s.svc.AddTag(s.ctx, docUUID, "status", "closed")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("key is required", func() {
		_, err := s.svc.AddTag(s.ctx, docUUID, "", "x")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("document removed between load and update", func() {
		s.store.EXPECT().Get(gomock.Any(), docUUID).Return(mustBuild(&s.Suite, validDoc(docUUID)), nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(store.ErrNotFound)
		_, err := s.svc.AddTag(s.ctx, docUUID, "k", "v")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSignAndVerify() {
	var stored *vcon.Vcon
	s.store.EXPECT().Get(gomock.Any(), docUUID).Return(mustBuild(&s.Suite, validDoc(docUUID)), nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, v *vcon.Vcon) error {
		stored = v.Clone()
		return nil
	})
	s.publisher.EXPECT().Publish(gomock.Any(), events.New(events.TypeSigned, docUUID, s.now)).Return(nil)

	signed, err := s.svc.Sign(s.ctx, docUUID)
	s.Require().NoError(err)
	s.True(signed.IsSigned())
	kid, _ := signed.KeyID()
	s.Equal("gateway-1", kid)

	s.store.EXPECT().Get(gomock.Any(), docUUID).Return(stored, nil)
	res, err := s.svc.Verify(s.ctx, docUUID)
	s.Require().NoError(err)
	s.Equal(&VerifyResult{UUID: docUUID, Found: true, Signed: true, Valid: true, KeyID: "gateway-1", Result: ResultValid}, res)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Verifications.WithLabelValues(ResultValid)))
}

func (s *ServiceSuite) TestWithoutSigningKey() {
	svc := New(s.store)
	_, err := svc.Sign(s.ctx, docUUID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	_, err = svc.Verify(s.ctx, docUUID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	_, _, err = svc.PublicKeyPEM()
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestDerivedKeyID() {
	svc := New(s.store, WithSigningKey(s.key, ""))
	pemBytes, kid, err := svc.PublicKeyPEM()
	s.Require().NoError(err)
	s.NotEmpty(kid)
	s.Contains(string(pemBytes), "BEGIN PUBLIC KEY")
}

func (s *ServiceSuite) TestVerifyBatch() {
	signed := func(id string) *vcon.Vcon {
		v := mustBuild(&s.Suite, validDoc(id))
		s.Require().NoError(v.Sign(s.key))
		return v
	}
	tampered := signed("c")
	tampered.Parties()[0].Name = optional.None[string]()

	ids := []string{"a", "b", "c", "d"}
	s.store.EXPECT().GetMany(gomock.Any(), ids).Return(map[string]*vcon.Vcon{
		"a": signed("a"),
		"b": mustBuild(&s.Suite, validDoc("b")),
		"c": tampered,
	}, nil)

	results, err := s.svc.VerifyBatch(s.ctx, ids)
	s.Require().NoError(err)
	s.Require().Len(results, 4)
	got := make([]string, len(results))
	for i, r := range results {
		s.Equal(ids[i], r.UUID)
		got[i] = r.Result
	}
	s.Equal([]string{ResultValid, ResultUnsigned, ResultInvalid, ResultMissing}, got)
}

func (s *ServiceSuite) TestVerifyBatchLimits() {
	_, err := s.svc.VerifyBatch(s.ctx, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.VerifyBatch(s.ctx, make([]string, MaxBatchSize+1))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.store.EXPECT().GetMany(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	_, err = s.svc.VerifyBatch(s.ctx, []string{"a"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestVerifyBatchCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.store.EXPECT().GetMany(gomock.Any(), gomock.Any()).Return(map[string]*vcon.Vcon{}, nil)
	_, err := s.svc.VerifyBatch(ctx, []string{"a", "b"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

// TestEndToEndWithMemoryStore runs the service over the real in-memory store.
func TestEndToEndWithMemoryStore(t *testing.T) {
	key, _, err := vcon.GenerateKeyPair(vcon.AlgEdDSA)
	if err != nil {
		t.Fatal(err)
	}
	rec := &events.Recorder{}
	svc := New(store.NewInMemoryStore(), WithSigningKey(key, ""), WithPublisher(rec))
	ctx := context.Background()

	if _, err := svc.Create(ctx, []byte(validDoc(docUUID))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AddTag(ctx, docUUID, "customer", "42"); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if _, err := svc.Sign(ctx, docUUID); err != nil {
		t.Fatalf("sign: %v", err)
	}
	res, err := svc.Verify(ctx, docUUID)
	if err != nil || !res.Valid {
		t.Fatalf("expected valid signature, got %+v err=%v", res, err)
	}
	if _, err := svc.AddTag(ctx, docUUID, "late", "x"); !dErrors.HasCode(err, dErrors.CodeInvalidState) {
		t.Fatalf("expected tagging a signed document to fail, got %v", err)
	}

	var types []events.Type
	for _, e := range rec.Events() {
		types = append(types, e.Type)
	}
	want := []events.Type{events.TypeCreated, events.TypeTagged, events.TypeSigned}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
}
