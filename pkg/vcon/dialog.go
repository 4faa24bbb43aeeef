package vcon

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	neturl "net/url"
	"path"

	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/isotime"
	"vcon/pkg/optional"
)

// Dialog types.
const (
	DialogText       = "text"
	DialogRecording  = "recording"
	DialogTransfer   = "transfer"
	DialogIncomplete = "incomplete"
	DialogAudio      = "audio"
	DialogVideo      = "video"
)

var dialogTypes = map[string]bool{
	DialogText:       true,
	DialogRecording:  true,
	DialogTransfer:   true,
	DialogIncomplete: true,
	DialogAudio:      true,
	DialogVideo:      true,
}

// IsDialogType reports whether t is a recognized dialog type.
func IsDialogType(t string) bool {
	return dialogTypes[t]
}

const (
	encodingBase64URL = "base64url"
	algSHA256         = "sha256"
)

// Fetched is the result of retrieving external dialog content.
type Fetched struct {
	Content  []byte
	Mimetype string
	Filename string
}

// Fetcher retrieves external dialog content. filename and mimetype are the
// caller's preferred values; implementations resolve empty ones from the
// response.
type Fetcher interface {
	Fetch(ctx context.Context, url, filename, mimetype string) (Fetched, error)
}

// Dialog is one turn or media segment of the conversation, carried inline in
// Body or by reference in URL.
type Dialog struct {
	Type           optional.Value[string]
	Start          optional.Value[string]
	Duration       optional.Value[float64]
	Parties        optional.Value[[]int]
	Originator     optional.Value[int]
	Mimetype       optional.Value[string]
	Filename       optional.Value[string]
	Body           optional.Value[any]
	Encoding       optional.Value[string]
	URL            optional.Value[string]
	Alg            optional.Value[string]
	Signature      optional.Value[string]
	Disposition    optional.Value[string]
	PartyHistory   optional.Value[[]PartyHistory]
	Transferee     optional.Value[int]
	Transferor     optional.Value[int]
	TransferTarget optional.Value[int]
	Original       optional.Value[int]
	Consultation   optional.Value[int]
	TargetDialog   optional.Value[int]
	Campaign       optional.Value[string]
	Interaction    optional.Value[string]
	Skill          optional.Value[string]
	Meta           optional.Value[any]
	Application    optional.Value[string]
	MessageID      optional.Value[string]

	// groupedParties holds a parties value that is not a flat index list,
	// such as a bare index or [0,[1,2]], kept in its original shape.
	groupedParties any

	extra *Dict
}

// PartyIndices returns every party index the dialog references, flattening
// grouped forms.
func (d *Dialog) PartyIndices() []int {
	if parties, ok := d.Parties.Get(); ok {
		return append([]int(nil), parties...)
	}
	if d.groupedParties == nil {
		return nil
	}
	flat, _ := flattenParties(d.groupedParties)
	return flat
}

// flattenParties accepts a bare index or an array whose items are indices or
// arrays of indices.
func flattenParties(v any) ([]int, bool) {
	if n, ok := toInt(v); ok {
		return []int{n}, true
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	var out []int
	for _, item := range arr {
		if n, ok := toInt(item); ok {
			out = append(out, n)
			continue
		}
		group, ok := toInts(item)
		if !ok {
			return nil, false
		}
		out = append(out, group...)
	}
	return out, true
}

// NewDialog builds a dialog of the given type. start may be a time.Time or an
// ISO-8601 string and is stored normalized. Party indices are not range
// checked here.
func NewDialog(dialogType string, start any, parties []int) (*Dialog, error) {
	if !IsDialogType(dialogType) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid dialog type: %s", dialogType)
	}
	ts, err := isotime.Normalize(start)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid dialog start")
	}
	d := &Dialog{
		Type:  optional.Some(dialogType),
		Start: optional.Some(ts),
	}
	if parties != nil {
		d.Parties = optional.Some(append([]int{}, parties...))
	}
	return d, nil
}

// SetBody canonicalizes and stores the body. A nil body removes it.
func (d *Dialog) SetBody(body any) error {
	v, err := dynamic(body)
	if err != nil {
		return fmt.Errorf("dialog: body: %w", err)
	}
	d.Body = v
	return nil
}

// SetMeta canonicalizes and stores the meta object.
func (d *Dialog) SetMeta(meta any) error {
	v, err := dynamic(meta)
	if err != nil {
		return fmt.Errorf("dialog: meta: %w", err)
	}
	d.Meta = v
	return nil
}

// IsExternalData reports whether the content is carried by reference.
func (d *Dialog) IsExternalData() bool {
	return d.URL.IsSet()
}

// IsInlineData reports whether the content is carried inline.
func (d *Dialog) IsInlineData() bool {
	return d.Body.IsSet() && !d.URL.IsSet()
}

// AddInlineData stores body inline with its sha256 content signature.
func (d *Dialog) AddInlineData(body, filename, mimetype string) {
	d.Body = optional.Some[any](body)
	setString(&d.Filename, filename)
	setString(&d.Mimetype, mimetype)
	d.Alg = optional.Some(algSHA256)
	d.Encoding = optional.Some(encodingBase64URL)
	d.Signature = optional.Some(ContentSignature([]byte(body)))
}

// AddExternalData references content at url. The content is fetched once to
// compute its signature and resolve the mimetype and filename; it is not
// stored.
func (d *Dialog) AddExternalData(ctx context.Context, f Fetcher, url, filename, mimetype string) error {
	got, err := f.Fetch(ctx, url, filename, mimetype)
	if err != nil {
		return err
	}
	d.URL = optional.Some(url)
	setString(&d.Mimetype, got.Mimetype)
	setString(&d.Filename, got.Filename)
	d.Alg = optional.Some(algSHA256)
	d.Encoding = optional.Some(encodingBase64URL)
	d.Signature = optional.Some(ContentSignature(got.Content))
	d.Body = optional.None[any]()
	return nil
}

// ToInlineData fetches the referenced content and embeds it as base64url in
// Body, dropping the URL.
func (d *Dialog) ToInlineData(ctx context.Context, f Fetcher) error {
	url, ok := d.URL.Get()
	if !ok {
		return dErrors.New(dErrors.CodeInvalidState, "dialog has no external url")
	}
	got, err := f.Fetch(ctx, url, d.Filename.OrElse(""), d.Mimetype.OrElse(""))
	if err != nil {
		return err
	}
	d.Body = optional.Some[any](base64.URLEncoding.EncodeToString(got.Content))
	d.URL = optional.None[string]()
	setString(&d.Mimetype, got.Mimetype)
	filename := got.Filename
	if filename == "" {
		filename = urlBasename(url)
	}
	setString(&d.Filename, filename)
	d.Alg = optional.Some(algSHA256)
	d.Encoding = optional.Some(encodingBase64URL)
	d.Signature = optional.Some(ContentSignature(got.Content))
	return nil
}

func setString(field *optional.Value[string], v string) {
	if v != "" {
		*field = optional.Some(v)
	}
}

// ContentSignature is the padded base64url sha256 of content, the form used
// in a dialog's signature field.
func ContentSignature(content []byte) string {
	sum := sha256.Sum256(content)
	return base64.URLEncoding.EncodeToString(sum[:])
}

func urlBasename(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// ToDict projects the dialog onto its set fields.
func (d *Dialog) ToDict() *Dict {
	out := NewDict()
	put(out, "type", d.Type)
	put(out, "start", d.Start)
	put(out, "duration", d.Duration)
	if d.Parties.IsSet() {
		putInts(out, "parties", d.Parties)
	} else if d.groupedParties != nil {
		out.Set("parties", deepCopy(d.groupedParties))
	}
	put(out, "originator", d.Originator)
	put(out, "mimetype", d.Mimetype)
	put(out, "filename", d.Filename)
	putRaw(out, "body", d.Body)
	put(out, "encoding", d.Encoding)
	put(out, "url", d.URL)
	put(out, "alg", d.Alg)
	put(out, "signature", d.Signature)
	put(out, "disposition", d.Disposition)
	if history, ok := d.PartyHistory.Get(); ok {
		items := make([]any, 0, len(history))
		for _, h := range history {
			items = append(items, h.ToDict())
		}
		out.Set("party_history", items)
	}
	put(out, "transferee", d.Transferee)
	put(out, "transferor", d.Transferor)
	put(out, "transfer_target", d.TransferTarget)
	put(out, "original", d.Original)
	put(out, "consultation", d.Consultation)
	put(out, "target_dialog", d.TargetDialog)
	put(out, "campaign", d.Campaign)
	put(out, "interaction", d.Interaction)
	put(out, "skill", d.Skill)
	putRaw(out, "meta", d.Meta)
	put(out, "application", d.Application)
	put(out, "message_id", d.MessageID)
	putExtras(out, d.extra)
	return out
}

// Clone returns a deep copy.
func (d *Dialog) Clone() *Dialog {
	out := *d
	if parties, ok := d.Parties.Get(); ok {
		out.Parties = optional.Some(append([]int{}, parties...))
	}
	if history, ok := d.PartyHistory.Get(); ok {
		out.PartyHistory = optional.Some(append([]PartyHistory{}, history...))
	}
	out.groupedParties = deepCopy(d.groupedParties)
	out.Body = cloneRaw(d.Body)
	out.Meta = cloneRaw(d.Meta)
	out.extra = d.extra.Clone()
	return &out
}

func dialogFromDict(p string, src *Dict, probs *problems) *Dialog {
	r := newFieldReader(p, src, probs)
	d := &Dialog{
		Type:           r.str("type"),
		Start:          r.str("start"),
		Duration:       r.float("duration"),
		Originator:     r.integer("originator"),
		Mimetype:       r.str("mimetype"),
		Filename:       r.str("filename"),
		Body:           r.raw("body"),
		Encoding:       r.str("encoding"),
		URL:            r.str("url"),
		Alg:            r.str("alg"),
		Signature:      r.str("signature"),
		Disposition:    r.str("disposition"),
		Transferee:     r.integer("transferee"),
		Transferor:     r.integer("transferor"),
		TransferTarget: r.integer("transfer_target"),
		Original:       r.integer("original"),
		Consultation:   r.integer("consultation"),
		TargetDialog:   r.integer("target_dialog"),
		Campaign:       r.str("campaign"),
		Interaction:    r.str("interaction"),
		Skill:          r.str("skill"),
		Meta:           r.raw("meta"),
		Application:    r.str("application"),
		MessageID:      r.str("message_id"),
	}
	if v, ok := r.lookup("parties"); ok {
		if flat, ok := toInts(v); ok {
			d.Parties = optional.Some(flat)
		} else if _, ok := flattenParties(v); ok {
			d.groupedParties = deepCopy(v)
		} else {
			r.fail("parties", "party index or array of party indices", v)
		}
	}
	if objs := r.objects("party_history"); objs != nil {
		history := make([]PartyHistory, 0, len(objs))
		for i, obj := range objs {
			history = append(history, partyHistoryFromDict(fmt.Sprintf("%s.party_history[%d]", p, i), obj, probs))
		}
		d.PartyHistory = optional.Some(history)
	}
	d.extra = r.extras()
	return d
}
