package vcon

import (
	"fmt"
	"time"

	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/isotime"
	"vcon/pkg/optional"
)

// SpecVersion is the format version written into new documents.
const SpecVersion = "0.0.1"

// Vcon is the root document.
//
// Invariants:
//   - parties, dialog, attachments and analysis only grow; an index handed
//     out by an Add call refers to the same entry for the document's lifetime
//   - the document never aliases memory passed to a constructor or Add call
//   - once signed, only Sign may change the document
//
// A Vcon is not safe for concurrent mutation.
type Vcon struct {
	uuid      optional.Value[string]
	version   optional.Value[string]
	createdAt optional.Value[string]

	parties     []*Party
	dialogs     []*Dialog
	attachments []*Attachment
	analysis    []*Analysis

	extra    *Dict
	envelope *envelope
}

// Option configures New.
type Option func(*newOptions)

type newOptions struct {
	domain string
	clock  func() time.Time
}

// WithDomain sets the domain fingerprinted into the document uuid.
func WithDomain(domain string) Option {
	return func(o *newOptions) {
		if domain != "" {
			o.domain = domain
		}
	}
}

// WithClock overrides the time source used for the uuid and created_at.
func WithClock(clock func() time.Time) Option {
	return func(o *newOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New returns an empty document with a fresh version 8 uuid and the current
// time as created_at.
func New(opts ...Option) *Vcon {
	o := newOptions{domain: DefaultDomain, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	now := o.clock()
	return &Vcon{
		uuid:      optional.Some(UUID8DomainName(o.domain, now).String()),
		version:   optional.Some(SpecVersion),
		createdAt: optional.Some(isotime.Format(now, true)),
	}
}

// FromMap builds a document from a plain map, deep-copying every value. A
// time.Time created_at is normalized; a missing one defaults to now.
func FromMap(m map[string]any) (*Vcon, error) {
	src := make(map[string]any, len(m))
	for k, v := range m {
		src[k] = v
	}
	if raw, ok := src["created_at"]; ok {
		switch raw.(type) {
		case time.Time, *time.Time:
			ts, err := isotime.Normalize(raw)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid created_at")
			}
			src["created_at"] = ts
		}
	}
	v, err := canonicalize(src)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "vcon is not representable as JSON")
	}
	d, ok := v.(*Dict)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vcon must be a JSON object")
	}
	return FromDict(d)
}

// FromDict builds a document from an ordered object, deep-copying every
// value. Fields are type checked but not validated; string timestamps are
// kept as given so a signed payload stays byte-stable.
func FromDict(d *Dict) (*Vcon, error) {
	var probs problems
	v := fromDict(d, time.Now, &probs)
	if err := probs.err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid vcon document")
	}
	return v, nil
}

// BuildFromJSON parses a JSON document. Malformed JSON is reported, never
// swallowed.
func BuildFromJSON(s string) (*Vcon, error) {
	raw, err := decodeJSON([]byte(s))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid JSON")
	}
	d, ok := raw.(*Dict)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "vcon must be a JSON object, got %s", jsonKind(raw))
	}
	return FromDict(d)
}

// fromDict always returns a document. Fields with the wrong type are left
// unset, carried verbatim as extras and recorded in probs.
func fromDict(d *Dict, clock func() time.Time, probs *problems) *Vcon {
	r := newFieldReader("vcon", d, probs)
	v := &Vcon{
		uuid:      r.str("uuid"),
		version:   r.str("vcon"),
		createdAt: r.str("created_at"),
	}
	if !v.createdAt.IsSet() && clock != nil && !r.failed("created_at") {
		v.createdAt = optional.Some(isotime.Format(clock(), true))
	}

	for i, obj := range r.objects("parties") {
		v.parties = append(v.parties, partyFromDict(fmt.Sprintf("parties[%d]", i), obj, probs))
	}
	for i, obj := range r.objects("dialog") {
		v.dialogs = append(v.dialogs, dialogFromDict(fmt.Sprintf("dialog[%d]", i), obj, probs))
	}
	for i, obj := range r.objects("attachments") {
		v.attachments = append(v.attachments, attachmentFromDict(fmt.Sprintf("attachments[%d]", i), obj, probs))
	}
	for i, obj := range r.objects("analysis") {
		v.analysis = append(v.analysis, analysisFromDict(fmt.Sprintf("analysis[%d]", i), obj, probs))
	}

	payload, hasPayload := r.lookup("payload")
	signatures, hasSignatures := r.lookup("signatures")
	if hasPayload || hasSignatures {
		v.envelope = &envelope{payload: deepCopy(payload), signatures: deepCopy(signatures)}
	}

	v.extra = r.extras()
	return v
}

// UUID returns the document identifier, or "" when absent.
func (v *Vcon) UUID() string { return v.uuid.OrElse("") }

// Version returns the format version, or "" when absent.
func (v *Vcon) Version() string { return v.version.OrElse("") }

// CreatedAt returns the creation timestamp, or "" when absent.
func (v *Vcon) CreatedAt() string { return v.createdAt.OrElse("") }

// Parties returns the parties in append order. The entries are the
// document's own records.
func (v *Vcon) Parties() []*Party { return append([]*Party(nil), v.parties...) }

// Dialogs returns the dialog entries in append order.
func (v *Vcon) Dialogs() []*Dialog { return append([]*Dialog(nil), v.dialogs...) }

// Attachments returns the attachments in append order.
func (v *Vcon) Attachments() []*Attachment { return append([]*Attachment(nil), v.attachments...) }

// Analyses returns the analysis entries in append order.
func (v *Vcon) Analyses() []*Analysis { return append([]*Analysis(nil), v.analysis...) }

// Extra returns a root field not modelled by the document, if carried.
func (v *Vcon) Extra(key string) (any, bool) {
	x, ok := v.extra.Get(key)
	return deepCopy(x), ok
}

// IsSigned reports whether the document carries a signature envelope.
func (v *Vcon) IsSigned() bool { return v.envelope != nil }

// Clone returns a deep copy, envelope included.
func (v *Vcon) Clone() *Vcon {
	out := &Vcon{
		uuid:      v.uuid,
		version:   v.version,
		createdAt: v.createdAt,
		extra:     v.extra.Clone(),
	}
	for _, p := range v.parties {
		out.parties = append(out.parties, p.Clone())
	}
	for _, d := range v.dialogs {
		out.dialogs = append(out.dialogs, d.Clone())
	}
	for _, a := range v.attachments {
		out.attachments = append(out.attachments, a.Clone())
	}
	for _, a := range v.analysis {
		out.analysis = append(out.analysis, a.Clone())
	}
	if v.envelope != nil {
		out.envelope = &envelope{payload: deepCopy(v.envelope.payload), signatures: deepCopy(v.envelope.signatures)}
	}
	return out
}
