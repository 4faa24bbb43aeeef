package vcon

import (
	"fmt"

	"vcon/pkg/optional"
)

// DialogRef is an analysis reference to one dialog or to a list of dialogs.
// The two shapes serialize differently: a bare index or an array.
type DialogRef struct {
	indices []int
	list    bool
}

// SingleDialog references one dialog by index.
func SingleDialog(index int) DialogRef {
	return DialogRef{indices: []int{index}}
}

// DialogList references several dialogs by index.
func DialogList(indices ...int) DialogRef {
	return DialogRef{indices: append([]int{}, indices...), list: true}
}

// Indices returns the referenced dialog indices.
func (r DialogRef) Indices() []int {
	return append([]int(nil), r.indices...)
}

// IsList reports whether the reference serializes as an array.
func (r DialogRef) IsList() bool {
	return r.list
}

func (r DialogRef) value() any {
	if r.list {
		return jsonValue(r.indices)
	}
	if len(r.indices) == 0 {
		return nil
	}
	return jsonValue(r.indices[0])
}

// Analysis is a derived result tied to one or more dialogs.
type Analysis struct {
	Type         optional.Value[string]
	Dialog       optional.Value[DialogRef]
	Mimetype     optional.Value[string]
	Filename     optional.Value[string]
	Vendor       optional.Value[string]
	Product      optional.Value[string]
	Schema       optional.Value[string]
	Body         optional.Value[any]
	Encoding     optional.Value[string]
	URL          optional.Value[string]
	Alg          optional.Value[string]
	Signature    optional.Value[string]
	VendorSchema optional.Value[any]

	extra *Dict
}

func (a *Analysis) ToDict() *Dict {
	d := NewDict()
	put(d, "type", a.Type)
	if ref, ok := a.Dialog.Get(); ok {
		if v := ref.value(); v != nil {
			d.Set("dialog", v)
		}
	}
	put(d, "mimetype", a.Mimetype)
	put(d, "filename", a.Filename)
	put(d, "vendor", a.Vendor)
	put(d, "product", a.Product)
	put(d, "schema", a.Schema)
	putRaw(d, "body", a.Body)
	put(d, "encoding", a.Encoding)
	put(d, "url", a.URL)
	put(d, "alg", a.Alg)
	put(d, "signature", a.Signature)
	putRaw(d, "vendor_schema", a.VendorSchema)
	putExtras(d, a.extra)
	return d
}

func (a *Analysis) Clone() *Analysis {
	out := *a
	if ref, ok := a.Dialog.Get(); ok {
		out.Dialog = optional.Some(DialogRef{indices: ref.Indices(), list: ref.list})
	}
	out.Body = cloneRaw(a.Body)
	out.VendorSchema = cloneRaw(a.VendorSchema)
	out.extra = a.extra.Clone()
	return &out
}

func analysisFromDict(path string, src *Dict, probs *problems) *Analysis {
	r := newFieldReader(path, src, probs)
	a := &Analysis{
		Type:         r.str("type"),
		Mimetype:     r.str("mimetype"),
		Filename:     r.str("filename"),
		Vendor:       r.str("vendor"),
		Product:      r.str("product"),
		Schema:       r.str("schema"),
		Body:         r.raw("body"),
		Encoding:     r.str("encoding"),
		URL:          r.str("url"),
		Alg:          r.str("alg"),
		Signature:    r.str("signature"),
		VendorSchema: r.raw("vendor_schema"),
	}
	if v, ok := r.lookup("dialog"); ok {
		switch v.(type) {
		case []any, []int:
			if idx, ok := r.ints("dialog").Get(); ok {
				a.Dialog = optional.Some(DialogRef{indices: idx, list: true})
			}
		default:
			if n, ok := r.integer("dialog").Get(); ok {
				a.Dialog = optional.Some(SingleDialog(n))
			}
		}
	}
	a.extra = r.extras()
	return a
}

// AnalysisOption configures AddAnalysis.
type AnalysisOption func(*analysisOptions)

type analysisOptions struct {
	encoding     string
	vendorSchema any
}

// WithAnalysisEncoding overrides the default "none" encoding.
func WithAnalysisEncoding(encoding string) AnalysisOption {
	return func(o *analysisOptions) {
		o.encoding = encoding
	}
}

// WithVendorSchema attaches the vendor's schema description.
func WithVendorSchema(schema any) AnalysisOption {
	return func(o *analysisOptions) {
		o.vendorSchema = schema
	}
}

// NewAnalysis builds an analysis record with the default encoding.
func NewAnalysis(typ string, dialog DialogRef, vendor string, body any, opts ...AnalysisOption) (*Analysis, error) {
	o := analysisOptions{encoding: EncodingNone}
	for _, opt := range opts {
		opt(&o)
	}
	b, err := dynamic(body)
	if err != nil {
		return nil, fmt.Errorf("analysis: body: %w", err)
	}
	schema, err := dynamic(o.vendorSchema)
	if err != nil {
		return nil, fmt.Errorf("analysis: vendor_schema: %w", err)
	}
	return &Analysis{
		Type:         optional.Some(typ),
		Dialog:       optional.Some(DialogRef{indices: dialog.Indices(), list: dialog.list}),
		Vendor:       optional.Some(vendor),
		Body:         b,
		Encoding:     optional.Some(o.encoding),
		VendorSchema: schema,
	}, nil
}
