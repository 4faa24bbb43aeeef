package vcon

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"vcon/internal/jws"
	dErrors "vcon/pkg/domain-errors"
)

// Signature algorithms accepted by GenerateKeyPair.
const (
	AlgRS256 = jws.RS256
	AlgES256 = jws.ES256
	AlgEdDSA = jws.EdDSA
)

// envelope holds the signature fields exactly as carried on the wire, so a
// parsed document re-serializes unchanged and Verify can reject anything
// malformed.
type envelope struct {
	payload    any
	signatures any
}

// GenerateKeyPair creates a signing key pair. An empty alg means RS256
// (RSA-2048).
func GenerateKeyPair(alg string) (crypto.Signer, crypto.PublicKey, error) {
	key, err := jws.GenerateKey(alg)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "generate key pair")
	}
	return key, key.Public(), nil
}

// CanonicalPayload is the compact JSON encoding of the document without its
// signature envelope. It is the signing input.
func (v *Vcon) CanonicalPayload() ([]byte, error) {
	data, err := json.Marshal(v.contentDict())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode canonical payload")
	}
	return data, nil
}

// Digest returns "sha256:" followed by the hex SHA-256 of payload.
func Digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// SignOption configures Sign.
type SignOption func(*signOptions)

type signOptions struct {
	keyID string
}

// WithKeyID sets the kid header. The default is derived from the public key.
func WithKeyID(kid string) SignOption {
	return func(o *signOptions) {
		o.keyID = kid
	}
}

// Sign replaces any existing envelope with a signature over the current
// canonical payload. The document must carry uuid, vcon and created_at.
func (v *Vcon) Sign(key crypto.Signer, opts ...SignOption) error {
	if key == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "signing key is required")
	}
	for _, missing := range []struct {
		name string
		set  bool
	}{
		{"uuid", v.uuid.IsSet()},
		{"vcon", v.version.IsSet()},
		{"created_at", v.createdAt.IsSet()},
	} {
		if !missing.set {
			return dErrors.Newf(dErrors.CodeInvalidState, "cannot sign: missing required field: %s", missing.name)
		}
	}

	o := signOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.keyID == "" {
		kid, err := jws.KeyID(key.Public())
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "unsupported signing key")
		}
		o.keyID = kid
	}

	payload, err := v.CanonicalPayload()
	if err != nil {
		return err
	}
	g, err := jws.Sign(payload, key, map[string]string{
		"kid":    o.keyID,
		"digest": Digest(payload),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "sign vcon")
	}

	signatures, err := canonicalize(g.Signatures)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode signatures")
	}
	v.envelope = &envelope{payload: g.Payload, signatures: signatures}
	return nil
}

// Verify reports whether the envelope is a valid signature by pub over the
// document's current content. Every failure, including an unsigned
// document, yields false.
func (v *Vcon) Verify(pub crypto.PublicKey) bool {
	g, ok := v.general()
	if !ok || pub == nil {
		return false
	}
	signed, err := jws.Verify(g, pub)
	if err != nil {
		return false
	}
	current, err := v.CanonicalPayload()
	if err != nil || !bytes.Equal(signed, current) {
		return false
	}
	if digest, ok := g.Signatures[0].Header["digest"]; ok && digest != Digest(current) {
		return false
	}
	return true
}

// KeyID returns the kid of the envelope's signature, if any.
func (v *Vcon) KeyID() (string, bool) {
	g, ok := v.general()
	if !ok || len(g.Signatures) != 1 {
		return "", false
	}
	kid, ok := g.Signatures[0].Header["kid"]
	return kid, ok
}

func (v *Vcon) general() (jws.General, bool) {
	if v.envelope == nil {
		return jws.General{}, false
	}
	payload, ok := v.envelope.payload.(string)
	if !ok {
		return jws.General{}, false
	}
	raw, err := json.Marshal(v.envelope.signatures)
	if err != nil {
		return jws.General{}, false
	}
	var sigs []jws.Signature
	if err := json.Unmarshal(raw, &sigs); err != nil {
		return jws.General{}, false
	}
	return jws.General{Payload: payload, Signatures: sigs}, true
}
