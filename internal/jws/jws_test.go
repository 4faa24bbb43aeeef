package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type JWSSuite struct {
	suite.Suite
}

func TestJWSSuite(t *testing.T) {
	suite.Run(t, new(JWSSuite))
}

var payload = []byte(`{"uuid":"0192aa73-e702-8cef-9dd8-dd37220d739c","vcon":"0.0.1"}`)

func (s *JWSSuite) TestRoundTripPerAlgorithm() {
	for _, alg := range []string{RS256, ES256, EdDSA} {
		s.Run(alg, func() {
			key, err := GenerateKey(alg)
			s.Require().NoError(err)

			g, err := Sign(payload, key, map[string]string{"kid": "k1"})
			s.Require().NoError(err)
			s.Require().Len(g.Signatures, 1)
			s.Equal("k1", g.Signatures[0].Header["kid"])

			got, err := Verify(g, key.Public())
			s.Require().NoError(err)
			s.Equal(payload, got)
		})
	}
}

func (s *JWSSuite) TestProtectedHeader() {
	key, err := GenerateKey(ES256)
	s.Require().NoError(err)
	g, err := Sign(payload, key, nil)
	s.Require().NoError(err)

	raw, err := encoding.DecodeString(g.Signatures[0].Protected)
	s.Require().NoError(err)
	var h Header
	s.Require().NoError(json.Unmarshal(raw, &h))
	s.Equal(Header{Alg: ES256, Typ: Type, Cty: ContentType}, h)
	s.Nil(g.Signatures[0].Header)
}

func (s *JWSSuite) TestVerifyRejects() {
	key, err := GenerateKey(EdDSA)
	s.Require().NoError(err)
	g, err := Sign(payload, key, nil)
	s.Require().NoError(err)

	s.Run("wrong key", func() {
		other, err := GenerateKey(EdDSA)
		s.Require().NoError(err)
		_, err = Verify(g, other.Public())
		s.ErrorIs(err, ErrInvalidSignature)
	})

	s.Run("key of another algorithm", func() {
		other, err := GenerateKey(ES256)
		s.Require().NoError(err)
		_, err = Verify(g, other.Public())
		s.ErrorIs(err, ErrUnsupportedKey)
	})

	s.Run("tampered payload", func() {
		tampered := g
		tampered.Payload = encoding.EncodeToString([]byte(`{"uuid":"x"}`))
		_, err := Verify(tampered, key.Public())
		s.ErrorIs(err, ErrInvalidSignature)
	})

	s.Run("no signatures", func() {
		_, err := Verify(General{Payload: g.Payload}, key.Public())
		s.ErrorIs(err, ErrMalformed)
	})

	s.Run("two signatures", func() {
		double := General{Payload: g.Payload, Signatures: append(g.Signatures, g.Signatures...)}
		_, err := Verify(double, key.Public())
		s.ErrorIs(err, ErrMalformed)
	})

	s.Run("garbage protected header", func() {
		bad := General{Payload: g.Payload, Signatures: []Signature{{Protected: "!!", Signature: g.Signatures[0].Signature}}}
		_, err := Verify(bad, key.Public())
		s.ErrorIs(err, ErrMalformed)
	})

	s.Run("alg none", func() {
		h, _ := json.Marshal(Header{Alg: "none", Typ: Type})
		bad := General{Payload: g.Payload, Signatures: []Signature{{Protected: encoding.EncodeToString(h)}}}
		_, err := Verify(bad, key.Public())
		s.ErrorIs(err, ErrUnsupportedAlgorithm)
	})
}

func (s *JWSSuite) TestGenerateKey() {
	s.Run("default is RSA", func() {
		key, err := GenerateKey("")
		s.Require().NoError(err)
		alg, err := AlgorithmFor(key)
		s.Require().NoError(err)
		s.Equal(RS256, alg)
	})

	s.Run("unknown algorithm", func() {
		_, err := GenerateKey("HS256")
		s.ErrorIs(err, ErrUnsupportedAlgorithm)
	})
}

func (s *JWSSuite) TestUnsupportedCurve() {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	s.Require().NoError(err)
	_, err = Sign(payload, key, nil)
	s.ErrorIs(err, ErrUnsupportedKey)
}

func (s *JWSSuite) TestZeroValueKeys() {
	key, err := GenerateKey(ES256)
	s.Require().NoError(err)
	g, err := Sign(payload, key, nil)
	s.Require().NoError(err)

	cases := map[string]crypto.PublicKey{
		"ecdsa zero value":  &ecdsa.PublicKey{},
		"ecdsa typed nil":   (*ecdsa.PublicKey)(nil),
		"ecdsa curve only":  &ecdsa.PublicKey{Curve: elliptic.P256()},
		"rsa zero value":    &rsa.PublicKey{},
		"rsa typed nil":     (*rsa.PublicKey)(nil),
		"ed25519 truncated": ed25519.PublicKey{1, 2, 3},
	}
	for name, pub := range cases {
		s.Run(name, func() {
			s.NotPanics(func() {
				_, err := Verify(g, pub)
				s.ErrorIs(err, ErrUnsupportedKey)
			})
		})
	}
}

func TestPEMRoundTrip(t *testing.T) {
	for _, alg := range []string{RS256, ES256, EdDSA} {
		t.Run(alg, func(t *testing.T) {
			key, err := GenerateKey(alg)
			require.NoError(t, err)

			privPEM, err := EncodePrivateKeyPEM(key)
			require.NoError(t, err)
			pubPEM, err := EncodePublicKeyPEM(key.Public())
			require.NoError(t, err)

			parsed, err := ParsePrivateKeyPEM(privPEM)
			require.NoError(t, err)
			pub, err := ParsePublicKeyPEM(pubPEM)
			require.NoError(t, err)

			g, err := Sign(payload, parsed, nil)
			require.NoError(t, err)
			_, err = Verify(g, pub)
			assert.NoError(t, err)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := ParsePrivateKeyPEM([]byte("not a key"))
		assert.ErrorIs(t, err, ErrUnsupportedKey)
		_, err = ParsePublicKeyPEM([]byte("not a key"))
		assert.ErrorIs(t, err, ErrUnsupportedKey)
	})
}

func TestKeyIDStable(t *testing.T) {
	key, err := GenerateKey(EdDSA)
	require.NoError(t, err)
	a, err := KeyID(key.Public())
	require.NoError(t, err)
	b, err := KeyID(crypto.PublicKey(key.Public()))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}
