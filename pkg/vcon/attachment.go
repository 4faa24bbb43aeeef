package vcon

import (
	"fmt"

	"vcon/pkg/optional"
)

// EncodingNone is the default encoding of attachment and analysis bodies.
const EncodingNone = "none"

// Attachment is an auxiliary document carried with the vCon.
type Attachment struct {
	Type      optional.Value[string]
	Start     optional.Value[string]
	Party     optional.Value[int]
	Dialog    optional.Value[int]
	Mimetype  optional.Value[string]
	Filename  optional.Value[string]
	Body      optional.Value[any]
	Encoding  optional.Value[string]
	URL       optional.Value[string]
	Alg       optional.Value[string]
	Signature optional.Value[string]

	extra *Dict
}

// NewAttachment builds an attachment with the default encoding.
func NewAttachment(typ string, body any) (*Attachment, error) {
	b, err := dynamic(body)
	if err != nil {
		return nil, fmt.Errorf("attachment: body: %w", err)
	}
	return &Attachment{
		Type:     optional.Some(typ),
		Body:     b,
		Encoding: optional.Some(EncodingNone),
	}, nil
}

func (a *Attachment) ToDict() *Dict {
	d := NewDict()
	put(d, "type", a.Type)
	put(d, "start", a.Start)
	put(d, "party", a.Party)
	put(d, "dialog", a.Dialog)
	put(d, "mimetype", a.Mimetype)
	put(d, "filename", a.Filename)
	putRaw(d, "body", a.Body)
	put(d, "encoding", a.Encoding)
	put(d, "url", a.URL)
	put(d, "alg", a.Alg)
	put(d, "signature", a.Signature)
	putExtras(d, a.extra)
	return d
}

func (a *Attachment) Clone() *Attachment {
	out := *a
	out.Body = cloneRaw(a.Body)
	out.extra = a.extra.Clone()
	return &out
}

func attachmentFromDict(path string, src *Dict, probs *problems) *Attachment {
	r := newFieldReader(path, src, probs)
	a := &Attachment{
		Type:      r.str("type"),
		Start:     r.str("start"),
		Party:     r.integer("party"),
		Dialog:    r.integer("dialog"),
		Mimetype:  r.str("mimetype"),
		Filename:  r.str("filename"),
		Body:      r.raw("body"),
		Encoding:  r.str("encoding"),
		URL:       r.str("url"),
		Alg:       r.str("alg"),
		Signature: r.str("signature"),
	}
	a.extra = r.extras()
	return a
}

// AttachmentOption configures AddAttachment.
type AttachmentOption func(*Attachment)

// WithAttachmentEncoding overrides the default "none" encoding.
func WithAttachmentEncoding(encoding string) AttachmentOption {
	return func(a *Attachment) {
		a.Encoding = optional.Some(encoding)
	}
}
