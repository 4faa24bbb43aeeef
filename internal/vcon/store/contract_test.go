package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/suite"

	"vcon/internal/vcon/store"
	"vcon/pkg/optional"
	"vcon/pkg/vcon"
)

type vconStore interface {
	Create(ctx context.Context, v *vcon.Vcon) error
	Update(ctx context.Context, v *vcon.Vcon) error
	Get(ctx context.Context, id string) (*vcon.Vcon, error)
	GetMany(ctx context.Context, ids []string) (map[string]*vcon.Vcon, error)
	Delete(ctx context.Context, id string) error
}

// contractSuite holds behavior every store implementation must share.
// Embedding suites set st in SetupTest.
type contractSuite struct {
	suite.Suite
	st vconStore
}

func newDoc(s *suite.Suite, name string) *vcon.Vcon {
	v := vcon.New()
	_, err := v.AddParty(&vcon.Party{Name: optional.Some(name), Tel: optional.Some("+15551234567")})
	s.Require().NoError(err)
	s.Require().NoError(v.AddTag("customer_id", "c-1"))
	return v
}

func (s *contractSuite) TestCreateAndGet() {
	ctx := context.Background()
	v := newDoc(&s.Suite, "Alice")
	s.Require().NoError(s.st.Create(ctx, v))

	got, err := s.st.Get(ctx, v.UUID())
	s.Require().NoError(err)
	want, _ := v.Dumps()
	have, _ := got.Dumps()
	s.Equal(want, have)
}

func (s *contractSuite) TestCreateDuplicate() {
	ctx := context.Background()
	v := newDoc(&s.Suite, "Alice")
	s.Require().NoError(s.st.Create(ctx, v))
	s.ErrorIs(s.st.Create(ctx, v), store.ErrConflict)
}

func (s *contractSuite) TestCreateRequiresUUID() {
	v, err := vcon.FromMap(map[string]any{"vcon": vcon.SpecVersion})
	s.Require().NoError(err)
	s.Error(s.st.Create(context.Background(), v))
}

func (s *contractSuite) TestGetMissing() {
	_, err := s.st.Get(context.Background(), "missing")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *contractSuite) TestUpdate() {
	ctx := context.Background()
	v := newDoc(&s.Suite, "Alice")
	s.ErrorIs(s.st.Update(ctx, v), store.ErrNotFound)

	s.Require().NoError(s.st.Create(ctx, v))
	s.Require().NoError(v.AddTag("status", "closed"))
	s.Require().NoError(s.st.Update(ctx, v))

	got, err := s.st.Get(ctx, v.UUID())
	s.Require().NoError(err)
	tag, ok := got.GetTag("status")
	s.True(ok)
	s.Equal("closed", tag)
}

func (s *contractSuite) TestLoadsAreIndependent() {
	ctx := context.Background()
	v := newDoc(&s.Suite, "Alice")
	s.Require().NoError(s.st.Create(ctx, v))

	a, err := s.st.Get(ctx, v.UUID())
	s.Require().NoError(err)
	a.Parties()[0].Name = optional.Some("Mallory")

	b, err := s.st.Get(ctx, v.UUID())
	s.Require().NoError(err)
	s.Equal("Alice", b.Parties()[0].Name.MustGet())
}

func (s *contractSuite) TestSignedDocumentVerifiesAfterReload() {
	ctx := context.Background()
	key, pub, err := vcon.GenerateKeyPair(vcon.AlgES256)
	s.Require().NoError(err)
	v := newDoc(&s.Suite, "Alice")
	s.Require().NoError(v.Sign(key))
	s.Require().NoError(s.st.Create(ctx, v))

	got, err := s.st.Get(ctx, v.UUID())
	s.Require().NoError(err)
	s.True(got.IsSigned())
	s.True(got.Verify(pub))
}

func (s *contractSuite) TestGetMany() {
	ctx := context.Background()
	var ids []string
	for i := range 3 {
		v := newDoc(&s.Suite, fmt.Sprintf("party-%d", i))
		s.Require().NoError(s.st.Create(ctx, v))
		ids = append(ids, v.UUID())
	}

	got, err := s.st.GetMany(ctx, append(ids, "missing"))
	s.Require().NoError(err)
	s.Len(got, 3)
	for _, id := range ids {
		s.Contains(got, id)
	}

	empty, err := s.st.GetMany(ctx, nil)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *contractSuite) TestDelete() {
	ctx := context.Background()
	v := newDoc(&s.Suite, "Alice")
	s.Require().NoError(s.st.Create(ctx, v))
	s.Require().NoError(s.st.Delete(ctx, v.UUID()))
	s.ErrorIs(s.st.Delete(ctx, v.UUID()), store.ErrNotFound)
	_, err := s.st.Get(ctx, v.UUID())
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *contractSuite) TestConcurrentCreateHasOneWinner() {
	ctx := context.Background()
	v := newDoc(&s.Suite, "Alice")
	const goroutines = 20

	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.st.Create(ctx, v.Clone())
			if err == nil {
				created.Add(1)
			} else if errors.Is(err, store.ErrConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}
