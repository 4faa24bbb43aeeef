package vcon

import (
	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/optional"
)

// TagsAttachmentType is the reserved attachment that holds document tags.
const TagsAttachmentType = "tags"

const tagsEncoding = "json"

var errSigned = dErrors.New(dErrors.CodeInvalidState, "vcon is signed and can no longer be modified")

func (v *Vcon) mutable() error {
	if v.envelope != nil {
		return errSigned
	}
	return nil
}

// AddParty appends a copy of p and returns its index.
func (v *Vcon) AddParty(p *Party) (int, error) {
	if err := v.mutable(); err != nil {
		return -1, err
	}
	if p == nil {
		return -1, dErrors.New(dErrors.CodeInvalidInput, "party is required")
	}
	v.parties = append(v.parties, p.Clone())
	return len(v.parties) - 1, nil
}

// AddDialog appends a copy of d and returns its index. Party references are
// not checked; see IsValid.
func (v *Vcon) AddDialog(d *Dialog) (int, error) {
	if err := v.mutable(); err != nil {
		return -1, err
	}
	if d == nil {
		return -1, dErrors.New(dErrors.CodeInvalidInput, "dialog is required")
	}
	v.dialogs = append(v.dialogs, d.Clone())
	return len(v.dialogs) - 1, nil
}

// AddAttachment appends an attachment and returns the stored record.
func (v *Vcon) AddAttachment(typ string, body any, opts ...AttachmentOption) (*Attachment, error) {
	if err := v.mutable(); err != nil {
		return nil, err
	}
	a, err := NewAttachment(typ, body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid attachment")
	}
	for _, opt := range opts {
		opt(a)
	}
	v.attachments = append(v.attachments, a)
	return a, nil
}

// AddAnalysis appends an analysis record and returns the stored record.
func (v *Vcon) AddAnalysis(typ string, dialog DialogRef, vendor string, body any, opts ...AnalysisOption) (*Analysis, error) {
	if err := v.mutable(); err != nil {
		return nil, err
	}
	a, err := NewAnalysis(typ, dialog, vendor, body, opts...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid analysis")
	}
	v.analysis = append(v.analysis, a)
	return a, nil
}

// AddTag sets key in the tags attachment, creating it on first use.
func (v *Vcon) AddTag(key, value string) error {
	if err := v.mutable(); err != nil {
		return err
	}
	tags, err := v.tagsBody(true)
	if err != nil {
		return err
	}
	tags.Set(key, value)
	return nil
}

// GetTag returns the tag stored under key. ok is false when the key, or the
// tags attachment itself, does not exist.
func (v *Vcon) GetTag(key string) (string, bool) {
	tags, err := v.tagsBody(false)
	if err != nil || tags == nil {
		return "", false
	}
	value, ok := tags.Get(key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Tags returns a copy of the tag map, or nil when no tag was ever set.
func (v *Vcon) Tags() *Dict {
	tags, err := v.tagsBody(false)
	if err != nil {
		return nil
	}
	return tags.Clone()
}

func (v *Vcon) tagsBody(create bool) (*Dict, error) {
	a := v.FindAttachmentByType(TagsAttachmentType)
	if a == nil {
		if !create {
			return nil, nil
		}
		a = &Attachment{
			Type:     optional.Some(TagsAttachmentType),
			Body:     optional.Some[any](NewDict()),
			Encoding: optional.Some(tagsEncoding),
		}
		v.attachments = append(v.attachments, a)
	}
	body, ok := a.Body.Get()
	if !ok {
		if !create {
			return nil, nil
		}
		body = NewDict()
		a.Body = optional.Some(body)
	}
	tags, ok := body.(*Dict)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidState, "tags attachment body is %s, not an object", jsonKind(body))
	}
	return tags, nil
}

// FindPartyIndex returns the index of the first party whose field equals
// value. Values are compared by their JSON encoding. An unknown field never
// matches.
func (v *Vcon) FindPartyIndex(field string, value any) (int, bool) {
	for i, p := range v.parties {
		if fieldMatches(p.ToDict(), field, value) {
			return i, true
		}
	}
	return -1, false
}

// FindDialog returns the first dialog whose field equals value, or nil.
func (v *Vcon) FindDialog(field string, value any) *Dialog {
	for _, d := range v.dialogs {
		if fieldMatches(d.ToDict(), field, value) {
			return d
		}
	}
	return nil
}

// FindAttachmentByType returns the first attachment of type typ, or nil.
func (v *Vcon) FindAttachmentByType(typ string) *Attachment {
	for _, a := range v.attachments {
		if t, ok := a.Type.Get(); ok && t == typ {
			return a
		}
	}
	return nil
}

// FindAnalysisByType returns the first analysis of type typ, or nil.
func (v *Vcon) FindAnalysisByType(typ string) *Analysis {
	for _, a := range v.analysis {
		if t, ok := a.Type.Get(); ok && t == typ {
			return a
		}
	}
	return nil
}

func fieldMatches(d *Dict, field string, value any) bool {
	got, ok := d.Get(field)
	if !ok {
		return false
	}
	return jsonEqual(got, value)
}
