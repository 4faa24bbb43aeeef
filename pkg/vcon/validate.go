package vcon

import (
	"fmt"
	"os"

	"vcon/pkg/isotime"
)

// Validation messages that callers may match on.
const (
	MsgInvalidJSON      = "Invalid JSON format"
	MsgFileNotFound     = "File not found"
	MsgInvalidCreatedAt = "Invalid created_at format"
)

// Validator checks structural and referential integrity. It never mutates
// the document it inspects.
type Validator struct {
	mimetypes map[string]bool
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMimetypes replaces the dialog mimetype allow-list.
func WithMimetypes(types ...string) ValidatorOption {
	return func(val *Validator) {
		val.mimetypes = make(map[string]bool, len(types))
		for _, t := range types {
			val.mimetypes[t] = true
		}
	}
}

// NewValidator returns a validator using the default mimetype allow-list
// unless overridden.
func NewValidator(opts ...ValidatorOption) *Validator {
	val := &Validator{}
	WithMimetypes(defaultMimetypes...)(val)
	for _, opt := range opts {
		opt(val)
	}
	return val
}

var defaultValidator = NewValidator()

// IsValid validates v with the default allow-list.
func (v *Vcon) IsValid() (bool, []string) {
	return defaultValidator.Validate(v)
}

// ValidateJSON validates a JSON document with the default allow-list.
func ValidateJSON(s string) (bool, []string) {
	return defaultValidator.ValidateJSON(s)
}

// ValidateFile validates a JSON file with the default allow-list.
func ValidateFile(path string) (bool, []string) {
	return defaultValidator.ValidateFile(path)
}

// Validate collects every applicable error; it does not stop at the first.
func (val *Validator) Validate(v *Vcon) (bool, []string) {
	var errs []string

	// A required field holding the wrong type is carried as an extra and
	// already reported as a type error.
	if !v.uuid.IsSet() && !v.extra.Has("uuid") {
		errs = append(errs, "Missing required field: uuid")
	}
	if !v.version.IsSet() && !v.extra.Has("vcon") {
		errs = append(errs, "Missing required field: vcon")
	}
	createdAt, ok := v.createdAt.Get()
	switch {
	case ok && !isotime.Valid(createdAt):
		errs = append(errs, MsgInvalidCreatedAt)
	case !ok && v.extra.Has("created_at"):
		errs = append(errs, MsgInvalidCreatedAt)
	case !ok:
		errs = append(errs, "Missing required field: created_at")
	}

	nParties := len(v.parties)
	for i, d := range v.dialogs {
		for _, idx := range d.PartyIndices() {
			if !inRange(idx, nParties) {
				errs = append(errs, fmt.Sprintf("Dialog %d references invalid party index: %d", i, idx))
			}
		}
		if idx, ok := d.Originator.Get(); ok && !inRange(idx, nParties) {
			errs = append(errs, fmt.Sprintf("Dialog %d originator references invalid party index: %d", i, idx))
		}
		for _, h := range d.PartyHistory.OrElse(nil) {
			if !inRange(h.Party, nParties) {
				errs = append(errs, fmt.Sprintf("Dialog %d party_history references invalid party index: %d", i, h.Party))
			}
		}
		if mt, ok := d.Mimetype.Get(); ok && !val.mimetypes[mt] {
			errs = append(errs, fmt.Sprintf("Dialog %d has invalid mimetype: %s", i, mt))
		}
	}

	nDialogs := len(v.dialogs)
	for i, a := range v.analysis {
		ref, ok := a.Dialog.Get()
		if !ok {
			continue
		}
		for _, idx := range ref.indices {
			if !inRange(idx, nDialogs) {
				errs = append(errs, fmt.Sprintf("Analysis %d references invalid dialog index: %d", i, idx))
			}
		}
	}

	return len(errs) == 0, errs
}

// ValidateJSON parses s then validates it. Malformed JSON yields the single
// error "Invalid JSON format". Otherwise every field of the wrong type is
// reported as "Invalid vCon: <path>: ..." alongside the validation errors.
func (val *Validator) ValidateJSON(s string) (bool, []string) {
	raw, err := decodeJSON([]byte(s))
	if err != nil {
		return false, []string{MsgInvalidJSON}
	}
	d, ok := raw.(*Dict)
	if !ok {
		return false, []string{fmt.Sprintf("Invalid vCon: expected JSON object, got %s", jsonKind(raw))}
	}
	var probs problems
	// No clock: a missing created_at must be reported, not defaulted.
	v := fromDict(d, nil, &probs)
	var errs []string
	for _, msg := range probs.messages() {
		errs = append(errs, "Invalid vCon: "+msg)
	}
	_, ruleErrs := val.Validate(v)
	errs = append(errs, ruleErrs...)
	return len(errs) == 0, errs
}

// ValidateFile reads path and validates its contents.
func (val *Validator) ValidateFile(path string) (bool, []string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, []string{MsgFileNotFound}
	}
	return val.ValidateJSON(string(data))
}

func inRange(idx, n int) bool {
	return idx >= 0 && idx < n
}
