package vcon

import (
	"fmt"
	"time"

	"vcon/pkg/isotime"
	"vcon/pkg/optional"
)

var partyFields = []string{
	"tel", "stir", "mailto", "name", "validation", "gmlpos",
	"civicaddress", "uuid", "role", "contact_list", "meta",
}

// Party is a participant in the conversation.
//
// Known fields are typed; anything else a caller attaches lives in the
// extension map, emitted after the known fields in insertion order.
type Party struct {
	Tel          optional.Value[string]
	Stir         optional.Value[string]
	Mailto       optional.Value[string]
	Name         optional.Value[string]
	Validation   optional.Value[string]
	Gmlpos       optional.Value[string]
	CivicAddress optional.Value[CivicAddress]
	UUID         optional.Value[string]
	Role         optional.Value[string]
	ContactList  optional.Value[string]
	Meta         optional.Value[any]

	ext *Dict
}

// SetExtension stores a caller-defined field. Known field names are
// rejected, as are values that cannot be represented as JSON. A nil value
// removes the extension.
func (p *Party) SetExtension(key string, value any) error {
	for _, f := range partyFields {
		if f == key {
			return fmt.Errorf("party: %q is a known field", key)
		}
	}
	if value == nil {
		p.ext.Delete(key)
		return nil
	}
	v, err := canonicalize(value)
	if err != nil {
		return fmt.Errorf("party: extension %q: %w", key, err)
	}
	if p.ext == nil {
		p.ext = NewDict()
	}
	p.ext.Set(key, v)
	return nil
}

// Extension returns a caller-defined field.
func (p *Party) Extension(key string) (any, bool) {
	v, ok := p.ext.Get(key)
	return deepCopy(v), ok
}

// ExtensionKeys returns the extension field names in insertion order.
func (p *Party) ExtensionKeys() []string {
	return p.ext.Keys()
}

// SetMeta canonicalizes and stores the meta object.
func (p *Party) SetMeta(meta any) error {
	v, err := dynamic(meta)
	if err != nil {
		return fmt.Errorf("party: meta: %w", err)
	}
	p.Meta = v
	return nil
}

// ToDict projects the party onto its set fields.
func (p *Party) ToDict() *Dict {
	d := NewDict()
	put(d, "tel", p.Tel)
	put(d, "stir", p.Stir)
	put(d, "mailto", p.Mailto)
	put(d, "name", p.Name)
	put(d, "validation", p.Validation)
	put(d, "gmlpos", p.Gmlpos)
	if addr, ok := p.CivicAddress.Get(); ok {
		d.Set("civicaddress", addr.ToDict())
	}
	put(d, "uuid", p.UUID)
	put(d, "role", p.Role)
	put(d, "contact_list", p.ContactList)
	putRaw(d, "meta", p.Meta)
	putExtras(d, p.ext)
	return d
}

// Clone returns a deep copy.
func (p *Party) Clone() *Party {
	out := *p
	out.Meta = cloneRaw(p.Meta)
	out.ext = p.ext.Clone()
	return &out
}

func partyFromDict(path string, src *Dict, probs *problems) *Party {
	r := newFieldReader(path, src, probs)
	p := &Party{
		Tel:         r.str("tel"),
		Stir:        r.str("stir"),
		Mailto:      r.str("mailto"),
		Name:        r.str("name"),
		Validation:  r.str("validation"),
		Gmlpos:      r.str("gmlpos"),
		UUID:        r.str("uuid"),
		Role:        r.str("role"),
		ContactList: r.str("contact_list"),
		Meta:        r.raw("meta"),
	}
	if obj := r.object("civicaddress"); obj != nil {
		p.CivicAddress = optional.Some(civicAddressFromDict(path+".civicaddress", obj, probs))
	}
	p.ext = r.extras()
	return p
}

// CivicAddress is a civic location in the RFC 5139 field vocabulary.
type CivicAddress struct {
	Country optional.Value[string]
	A1      optional.Value[string]
	A2      optional.Value[string]
	A3      optional.Value[string]
	A4      optional.Value[string]
	A5      optional.Value[string]
	A6      optional.Value[string]
	PRD     optional.Value[string]
	POD     optional.Value[string]
	STS     optional.Value[string]
	HNO     optional.Value[string]
	HNS     optional.Value[string]
	LMK     optional.Value[string]
	LOC     optional.Value[string]
	FLR     optional.Value[string]
	NAM     optional.Value[string]
	PC      optional.Value[string]
}

func (c CivicAddress) ToDict() *Dict {
	d := NewDict()
	put(d, "country", c.Country)
	put(d, "a1", c.A1)
	put(d, "a2", c.A2)
	put(d, "a3", c.A3)
	put(d, "a4", c.A4)
	put(d, "a5", c.A5)
	put(d, "a6", c.A6)
	put(d, "prd", c.PRD)
	put(d, "pod", c.POD)
	put(d, "sts", c.STS)
	put(d, "hno", c.HNO)
	put(d, "hns", c.HNS)
	put(d, "lmk", c.LMK)
	put(d, "loc", c.LOC)
	put(d, "flr", c.FLR)
	put(d, "nam", c.NAM)
	put(d, "pc", c.PC)
	return d
}

func civicAddressFromDict(path string, src *Dict, probs *problems) CivicAddress {
	r := newFieldReader(path, src, probs)
	c := CivicAddress{
		Country: r.str("country"),
		A1:      r.str("a1"),
		A2:      r.str("a2"),
		A3:      r.str("a3"),
		A4:      r.str("a4"),
		A5:      r.str("a5"),
		A6:      r.str("a6"),
		PRD:     r.str("prd"),
		POD:     r.str("pod"),
		STS:     r.str("sts"),
		HNO:     r.str("hno"),
		HNS:     r.str("hns"),
		LMK:     r.str("lmk"),
		LOC:     r.str("loc"),
		FLR:     r.str("flr"),
		NAM:     r.str("nam"),
		PC:      r.str("pc"),
	}
	r.extras().Range(func(key string, _ any) bool {
		if !r.failed(key) {
			probs.add(fmt.Errorf("%s: unknown field %q", path, key))
		}
		return true
	})
	return c
}

// PartyHistory records a party joining, leaving or otherwise changing state
// during a dialog.
type PartyHistory struct {
	Party int
	Event string
	Time  string
}

// NewPartyHistory builds a history entry, normalizing at to ISO-8601.
// at may be a time.Time or an ISO-8601 string.
func NewPartyHistory(party int, event string, at any) (PartyHistory, error) {
	ts, err := isotime.Normalize(at)
	if err != nil {
		return PartyHistory{}, fmt.Errorf("party history time: %w", err)
	}
	return PartyHistory{Party: party, Event: event, Time: ts}, nil
}

// Joined is a convenience for the common "join" event.
func Joined(party int, at time.Time) PartyHistory {
	return PartyHistory{Party: party, Event: "join", Time: isotime.Format(at, true)}
}

func (h PartyHistory) ToDict() *Dict {
	d := NewDict()
	d.Set("party", jsonValue(h.Party))
	d.Set("event", h.Event)
	d.Set("time", h.Time)
	return d
}

func partyHistoryFromDict(path string, src *Dict, probs *problems) PartyHistory {
	r := newFieldReader(path, src, probs)
	return PartyHistory{
		Party: r.integer("party").OrElse(0),
		Event: r.str("event").OrElse(""),
		Time:  r.str("time").OrElse(""),
	}
}

func cloneRaw(v optional.Value[any]) optional.Value[any] {
	if x, ok := v.Get(); ok {
		return optional.Some(deepCopy(x))
	}
	return v
}
