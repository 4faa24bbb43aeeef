// Package store persists vCon documents. Every implementation keeps the
// serialized JSON, so each load yields an independent document instance and a
// signed document comes back byte for byte.
package store

import (
	"fmt"

	"vcon/pkg/platform/sentinel"
	"vcon/pkg/vcon"
)

// Re-exported sentinels so callers can errors.Is against the store package.
var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

func encode(v *vcon.Vcon) (string, string, error) {
	if v == nil {
		return "", "", fmt.Errorf("vcon is required")
	}
	id := v.UUID()
	if id == "" {
		return "", "", fmt.Errorf("vcon uuid is required")
	}
	data, err := v.ToJSON()
	if err != nil {
		return "", "", fmt.Errorf("encode vcon %s: %w", id, err)
	}
	return id, string(data), nil
}

func decode(id, doc string) (*vcon.Vcon, error) {
	v, err := vcon.BuildFromJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("decode vcon %s: %w", id, err)
	}
	return v, nil
}
