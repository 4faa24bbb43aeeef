package vcon

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleVcon = `{"uuid":"0192aa73-e702-8cef-9dd8-dd37220d739c","vcon":"0.0.1",` +
	`"created_at":"2024-10-20T15:02:55.490850+00:00","parties":[` +
	`{"tel":"+14513886516","mailto":"david.scott@pickrandombusinesstype.com","name":"David Scott","meta":{"role":"agent"}},` +
	`{"tel":"+16171557264","mailto":"diane.allen@gmail.com","name":"Diane Allen","meta":{"role":"customer"}}],` +
	`"dialog":[{"type":"recording","start":"2024-10-20T15:02:54.888840","duration":52.68,"parties":[0,1],` +
	`"mimetype":"audio/x-wav","filename":"bb1489ad-0b45-47a0-bca6-de124da39a3a.mp3","body":"","encoding":"base64url",` +
	`"alg":"sha256","signature":"JBzeZEPDNVm8iPEeout0UK-B2Fp6JzeQxqy70SvM_MU=","disposition":"ANSWERED"}],` +
	`"attachments":[{"type":"generation_info","body":{"agent_name":"David Scott","customer_name":"Diane Allen",` +
	`"business":"Auto Repair Shop","problem":"billing","emotion":"disappointed",` +
	`"created_on":"2024-10-20T15:02:55.490740","model":"gpt-4o-mini"},"encoding":"none"}],` +
	`"analysis":[{"type":"analysis_info","dialog":0,"vendor":"openai","body":[` +
	`{"speaker":"Agent","message":"Hello! My name is David Scott. How can I assist you today?"},` +
	`{"speaker":"Customer","message":"Hi David, I'm Diane Allen. I have a question about my recent bill."}],` +
	`"encoding":"none","vendor_schema":{"model":"gpt-4o-mini","prompt":"Generate a fake conversation."}}]}`

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func containsError(errs []string, fragment string) bool {
	for _, e := range errs {
		if strings.Contains(e, fragment) {
			return true
		}
	}
	return false
}

type fakeFetcher struct {
	result Fetched
	err    error
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, filename, mimetype string) (Fetched, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return Fetched{}, f.err
	}
	out := f.result
	if filename != "" {
		out.Filename = filename
	}
	if mimetype != "" {
		out.Mimetype = mimetype
	}
	return out, nil
}
