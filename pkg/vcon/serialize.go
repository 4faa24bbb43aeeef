package vcon

import (
	"encoding/json"
	"fmt"

	dErrors "vcon/pkg/domain-errors"
)

// ToDict returns the canonical projection: uuid, vcon, created_at, parties,
// dialog, attachments, analysis, any carried root fields, then payload and
// signatures when signed. Only set fields are emitted; the four arrays are
// always present.
func (v *Vcon) ToDict() *Dict {
	d := v.contentDict()
	if v.envelope != nil {
		if v.envelope.payload != nil {
			d.Set("payload", deepCopy(v.envelope.payload))
		}
		if v.envelope.signatures != nil {
			d.Set("signatures", deepCopy(v.envelope.signatures))
		}
	}
	return d
}

// contentDict is the projection of everything except the signature
// envelope. Its compact JSON encoding is the canonical payload.
func (v *Vcon) contentDict() *Dict {
	d := NewDict()
	put(d, "uuid", v.uuid)
	put(d, "vcon", v.version)
	put(d, "created_at", v.createdAt)

	parties := make([]any, 0, len(v.parties))
	for _, p := range v.parties {
		parties = append(parties, p.ToDict())
	}
	d.Set("parties", parties)

	dialogs := make([]any, 0, len(v.dialogs))
	for _, dlg := range v.dialogs {
		dialogs = append(dialogs, dlg.ToDict())
	}
	d.Set("dialog", dialogs)

	attachments := make([]any, 0, len(v.attachments))
	for _, a := range v.attachments {
		attachments = append(attachments, a.ToDict())
	}
	d.Set("attachments", attachments)

	analysis := make([]any, 0, len(v.analysis))
	for _, a := range v.analysis {
		analysis = append(analysis, a.ToDict())
	}
	d.Set("analysis", analysis)

	putExtras(d, v.extra)
	return d
}

// ToJSON encodes ToDict as compact JSON.
func (v *Vcon) ToJSON() ([]byte, error) {
	data, err := json.Marshal(v.ToDict())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode vcon")
	}
	return data, nil
}

// Dumps is ToJSON as a string.
func (v *Vcon) Dumps() (string, error) {
	data, err := v.ToJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MarshalJSON lets a Vcon be embedded in other JSON values.
func (v *Vcon) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToDict())
}

// UnmarshalJSON replaces v with the parsed document.
func (v *Vcon) UnmarshalJSON(data []byte) error {
	parsed, err := BuildFromJSON(string(data))
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func (v *Vcon) String() string {
	s, err := v.Dumps()
	if err != nil {
		return fmt.Sprintf("vcon(%s): %v", v.UUID(), err)
	}
	return s
}
