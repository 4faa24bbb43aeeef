// Package jws signs and verifies payloads as JWS general JSON serialization
// objects, using the golang-jwt signing methods for RS256, ES256 and EdDSA.
package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Supported algorithms.
const (
	RS256 = "RS256"
	ES256 = "ES256"
	EdDSA = "EdDSA"
)

// Media types carried in the protected header.
const (
	Type        = "vcon+jws"
	ContentType = "application/vcon+json"
)

const rsaKeyBits = 2048

var (
	ErrUnsupportedAlgorithm = errors.New("jws: unsupported algorithm")
	ErrUnsupportedKey       = errors.New("jws: unsupported key type")
	ErrMalformed            = errors.New("jws: malformed object")
	ErrInvalidSignature     = errors.New("jws: invalid signature")
)

// Header is the protected header.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	Cty string `json:"cty,omitempty"`
}

// Signature is one entry of the signatures array.
type Signature struct {
	Protected string            `json:"protected"`
	Header    map[string]string `json:"header,omitempty"`
	Signature string            `json:"signature"`
}

// General is a JWS in general JSON serialization.
type General struct {
	Payload    string      `json:"payload"`
	Signatures []Signature `json:"signatures"`
}

var encoding = base64.RawURLEncoding

// Method returns the golang-jwt signing method for alg.
func Method(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case RS256:
		return jwt.SigningMethodRS256, nil
	case ES256:
		return jwt.SigningMethodES256, nil
	case EdDSA:
		return jwt.SigningMethodEdDSA, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// AlgorithmFor returns the algorithm matching a private or public key.
// Nil and zero-value keys are unsupported.
func AlgorithmFor(key any) (string, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		if k == nil || k.N == nil {
			return "", fmt.Errorf("%w: empty RSA key", ErrUnsupportedKey)
		}
		return RS256, nil
	case *rsa.PublicKey:
		if k == nil || k.N == nil {
			return "", fmt.Errorf("%w: empty RSA key", ErrUnsupportedKey)
		}
		return RS256, nil
	case *ecdsa.PrivateKey:
		if k == nil {
			return "", fmt.Errorf("%w: empty EC key", ErrUnsupportedKey)
		}
		return ecAlgorithm(&k.PublicKey)
	case *ecdsa.PublicKey:
		return ecAlgorithm(k)
	case ed25519.PrivateKey:
		if len(k) != ed25519.PrivateKeySize {
			return "", fmt.Errorf("%w: ed25519 key length %d", ErrUnsupportedKey, len(k))
		}
		return EdDSA, nil
	case ed25519.PublicKey:
		if len(k) != ed25519.PublicKeySize {
			return "", fmt.Errorf("%w: ed25519 key length %d", ErrUnsupportedKey, len(k))
		}
		return EdDSA, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

func ecAlgorithm(k *ecdsa.PublicKey) (string, error) {
	if k == nil || k.Curve == nil || k.X == nil || k.Y == nil {
		return "", fmt.Errorf("%w: empty EC key", ErrUnsupportedKey)
	}
	if k.Curve != elliptic.P256() {
		return "", fmt.Errorf("%w: curve %s", ErrUnsupportedKey, k.Curve.Params().Name)
	}
	return ES256, nil
}

// GenerateKey creates a fresh private key for alg. An empty alg means RS256.
func GenerateKey(alg string) (crypto.Signer, error) {
	switch alg {
	case RS256, "":
		return rsa.GenerateKey(rand.Reader, rsaKeyBits)
	case ES256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case EdDSA:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// KeyID derives a stable identifier from the public key's SPKI encoding.
func KeyID(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	sum := sha256.Sum256(der)
	return encoding.EncodeToString(sum[:]), nil
}

// Sign produces a single-signature JWS over payload. unprotected is copied
// into the signature's unprotected header.
func Sign(payload []byte, key crypto.Signer, unprotected map[string]string) (General, error) {
	alg, err := AlgorithmFor(key)
	if err != nil {
		return General{}, err
	}
	method, err := Method(alg)
	if err != nil {
		return General{}, err
	}
	header, err := json.Marshal(Header{Alg: alg, Typ: Type, Cty: ContentType})
	if err != nil {
		return General{}, err
	}
	protected := encoding.EncodeToString(header)
	encodedPayload := encoding.EncodeToString(payload)

	sig, err := method.Sign(protected+"."+encodedPayload, key)
	if err != nil {
		return General{}, fmt.Errorf("jws: sign: %w", err)
	}

	var h map[string]string
	if len(unprotected) > 0 {
		h = make(map[string]string, len(unprotected))
		for k, v := range unprotected {
			h[k] = v
		}
	}
	return General{
		Payload: encodedPayload,
		Signatures: []Signature{{
			Protected: protected,
			Header:    h,
			Signature: encoding.EncodeToString(sig),
		}},
	}, nil
}

// Verify checks the single signature of g against pub and returns the
// decoded payload. The protected algorithm must match the key type.
func Verify(g General, pub crypto.PublicKey) ([]byte, error) {
	if len(g.Signatures) != 1 {
		return nil, fmt.Errorf("%w: expected one signature, got %d", ErrMalformed, len(g.Signatures))
	}
	s := g.Signatures[0]

	rawHeader, err := encoding.DecodeString(s.Protected)
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformed, err)
	}
	var header Header
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformed, err)
	}
	if header.Typ != Type {
		return nil, fmt.Errorf("%w: unexpected typ %q", ErrMalformed, header.Typ)
	}
	method, err := Method(header.Alg)
	if err != nil {
		return nil, err
	}
	keyAlg, err := AlgorithmFor(pub)
	if err != nil {
		return nil, err
	}
	if keyAlg != header.Alg {
		return nil, fmt.Errorf("%w: key is %s, header is %s", ErrUnsupportedKey, keyAlg, header.Alg)
	}

	payload, err := encoding.DecodeString(g.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	sig, err := encoding.DecodeString(s.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	if err := method.Verify(s.Protected+"."+g.Payload, sig, pub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return payload, nil
}
