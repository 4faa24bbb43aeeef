package vcon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"vcon/pkg/optional"
)

type ValidateSuite struct {
	suite.Suite
}

func TestValidateSuite(t *testing.T) {
	suite.Run(t, new(ValidateSuite))
}

func (s *ValidateSuite) TestSampleIsValid() {
	v, err := BuildFromJSON(sampleVcon)
	s.Require().NoError(err)
	ok, errs := v.IsValid()
	s.True(ok)
	s.Empty(errs)
}

func (s *ValidateSuite) TestMinimalDocument() {
	v, err := BuildFromJSON(`{"uuid":"0192aa73-e702-8cef-9dd8-dd37220d739c","vcon":"0.0.1","created_at":"2024-10-20T15:02:55+00:00"}`)
	s.Require().NoError(err)
	ok, errs := v.IsValid()
	s.True(ok)
	s.Empty(errs)
}

func (s *ValidateSuite) TestMissingRequiredFields() {
	var v Vcon
	ok, errs := v.IsValid()
	s.False(ok)
	s.Equal([]string{
		"Missing required field: uuid",
		"Missing required field: vcon",
		"Missing required field: created_at",
	}, errs)
}

func (s *ValidateSuite) TestInvalidCreatedAt() {
	v, err := FromMap(map[string]any{"uuid": "u", "vcon": "0.0.1", "created_at": "invalid-date"})
	s.Require().NoError(err)
	ok, errs := v.IsValid()
	s.False(ok)
	s.Equal([]string{"Invalid created_at format"}, errs)
}

func (s *ValidateSuite) TestPartyReferences() {
	v := New()
	_, err := v.AddParty(&Party{Name: optional.Some("Test Party")})
	s.Require().NoError(err)

	d, err := NewDialog(DialogText, "2023-06-01T10:00:00Z", []int{0, 1})
	s.Require().NoError(err)
	d.Originator = optional.Some(-1)
	_, err = v.AddDialog(d)
	s.Require().NoError(err)

	ok, errs := v.IsValid()
	s.False(ok)
	s.True(containsError(errs, "invalid party index: 1"))
	s.Contains(errs, "Dialog 0 references invalid party index: 1")
	s.Contains(errs, "Dialog 0 originator references invalid party index: -1")
	s.Len(errs, 2)
}

func (s *ValidateSuite) TestPartyHistoryReferences() {
	v := New()
	d, err := NewDialog(DialogAudio, "2023-06-01T10:00:00Z", nil)
	s.Require().NoError(err)
	d.PartyHistory = optional.Some([]PartyHistory{{Party: 3, Event: "join", Time: "2023-06-01T10:00:00+00:00"}})
	_, err = v.AddDialog(d)
	s.Require().NoError(err)

	_, errs := v.IsValid()
	s.Equal([]string{"Dialog 0 party_history references invalid party index: 3"}, errs)
}

func (s *ValidateSuite) TestDialogReferences() {
	v := New()
	_, err := v.AddAnalysis("summary", SingleDialog(0), "acme", "text")
	s.Require().NoError(err)
	_, err = v.AddAnalysis("sentiment", DialogList(0, 2), "acme", "text")
	s.Require().NoError(err)

	ok, errs := v.IsValid()
	s.False(ok)
	s.True(containsError(errs, "invalid dialog index: 0"))
	s.Equal([]string{
		"Analysis 0 references invalid dialog index: 0",
		"Analysis 1 references invalid dialog index: 0",
		"Analysis 1 references invalid dialog index: 2",
	}, errs)
}

func (s *ValidateSuite) TestMimetypes() {
	newDoc := func(mimetype string) *Vcon {
		v := New()
		_, err := v.AddParty(&Party{})
		s.Require().NoError(err)
		d, err := NewDialog(DialogRecording, "2023-06-01T10:00:00Z", []int{0})
		s.Require().NoError(err)
		d.Mimetype = optional.Some(mimetype)
		_, err = v.AddDialog(d)
		s.Require().NoError(err)
		return v
	}

	s.Run("unknown mimetype is reported", func() {
		_, errs := newDoc("invalid/type").IsValid()
		s.True(containsError(errs, "invalid mimetype: invalid/type"))
	})

	s.Run("allowed mimetype passes", func() {
		ok, errs := newDoc("audio/mp3").IsValid()
		s.True(ok)
		s.False(containsError(errs, "invalid mimetype"))
	})

	s.Run("injected allow-list", func() {
		val := NewValidator(WithMimetypes("audio/flac"))
		ok, _ := val.Validate(newDoc("audio/flac"))
		s.True(ok)
		_, errs := val.Validate(newDoc("audio/mp3"))
		s.Equal([]string{"Dialog 0 has invalid mimetype: audio/mp3"}, errs)
	})

	s.Len(DefaultMimetypes(), 19)
}

func (s *ValidateSuite) TestErrorsAccumulate() {
	v, err := FromMap(map[string]any{
		"created_at": "nope",
		"dialog":     []any{map[string]any{"type": "text", "parties": []int{4}, "mimetype": "x/y"}},
		"analysis":   []any{map[string]any{"type": "t", "dialog": 9}},
	})
	s.Require().NoError(err)

	_, errs := v.IsValid()
	s.Equal([]string{
		"Missing required field: uuid",
		"Missing required field: vcon",
		"Invalid created_at format",
		"Dialog 0 references invalid party index: 4",
		"Dialog 0 has invalid mimetype: x/y",
		"Analysis 0 references invalid dialog index: 9",
	}, errs)
}

func (s *ValidateSuite) TestValidationDoesNotMutate() {
	v, err := BuildFromJSON(`{"created_at":"bad","dialog":[{"type":"text","parties":[5]}]}`)
	s.Require().NoError(err)
	before, err := v.Dumps()
	s.Require().NoError(err)

	v.IsValid()
	after, err := v.Dumps()
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *ValidateSuite) TestValidateJSON() {
	s.Run("valid", func() {
		ok, errs := ValidateJSON(sampleVcon)
		s.True(ok)
		s.Empty(errs)
	})

	s.Run("malformed", func() {
		ok, errs := ValidateJSON("{not json")
		s.False(ok)
		s.Equal([]string{"Invalid JSON format"}, errs)
	})

	s.Run("missing created_at is not defaulted", func() {
		_, errs := ValidateJSON(`{"uuid":"u","vcon":"0.0.1"}`)
		s.Equal([]string{"Missing required field: created_at"}, errs)
	})

	s.Run("undecodable field", func() {
		ok, errs := ValidateJSON(`{"uuid":1,"vcon":"0.0.1","created_at":"2024-01-01T00:00:00Z"}`)
		s.False(ok)
		s.Equal([]string{"Invalid vCon: vcon.uuid: expected string, got number"}, errs)
	})

	s.Run("type errors accumulate with rule errors", func() {
		ok, errs := ValidateJSON(`{"uuid":"u","vcon":"0.0.1","created_at":"2024-01-01T00:00:00Z",` +
			`"dialog":[{"type":"text","duration":"60","parties":[3]}],"analysis":[{"dialog":9,"vendor":7}]}`)
		s.False(ok)
		s.Equal([]string{
			"Invalid vCon: dialog[0].duration: expected number, got string",
			"Invalid vCon: analysis[0].vendor: expected string, got number",
			"Dialog 0 references invalid party index: 3",
			"Analysis 0 references invalid dialog index: 9",
		}, errs)
	})

	s.Run("wrong-typed required fields are reported once", func() {
		_, errs := ValidateJSON(`{"uuid":1,"vcon":"0.0.1","created_at":5}`)
		s.Equal([]string{
			"Invalid vCon: vcon.uuid: expected string, got number",
			"Invalid vCon: vcon.created_at: expected string, got number",
			"Invalid created_at format",
		}, errs)
	})

	s.Run("non-object entries keep positions", func() {
		_, errs := ValidateJSON(`{"uuid":"u","vcon":"0.0.1","created_at":"2024-01-01T00:00:00Z",` +
			`"parties":[{"name":"a"}],"dialog":["x",{"type":"text","parties":[1]}]}`)
		s.Equal([]string{
			"Invalid vCon: vcon.dialog[0]: expected object, got string",
			"Dialog 1 references invalid party index: 1",
		}, errs)
	})

	s.Run("grouped parties", func() {
		ok, errs := ValidateJSON(`{"uuid":"u","vcon":"0.0.1","created_at":"2024-01-01T00:00:00Z",` +
			`"parties":[{"name":"a"},{"name":"b"}],"dialog":[{"type":"text","parties":[0,[1]]}]}`)
		s.True(ok)
		s.Empty(errs)

		_, errs = ValidateJSON(`{"uuid":"u","vcon":"0.0.1","created_at":"2024-01-01T00:00:00Z",` +
			`"parties":[{"name":"a"}],"dialog":[{"type":"text","parties":[0,[1]]}]}`)
		s.Equal([]string{"Dialog 0 references invalid party index: 1"}, errs)
	})

	s.Run("out of range integer", func() {
		_, errs := ValidateJSON(`{"uuid":"u","vcon":"0.0.1","created_at":"2024-01-01T00:00:00Z","analysis":[{"dialog":1e30}]}`)
		s.Equal([]string{"Invalid vCon: analysis[0].dialog: expected integer, got number"}, errs)
	})

	s.Run("not an object", func() {
		_, errs := ValidateJSON(`"x"`)
		s.Equal([]string{"Invalid vCon: expected JSON object, got string"}, errs)
	})
}

func (s *ValidateSuite) TestValidateFile() {
	dir := s.T().TempDir()

	s.Run("missing file", func() {
		ok, errs := ValidateFile(filepath.Join(dir, "absent.json"))
		s.False(ok)
		s.Equal([]string{"File not found"}, errs)
	})

	s.Run("delegates to JSON validation", func() {
		path := filepath.Join(dir, "sample.json")
		s.Require().NoError(os.WriteFile(path, []byte(sampleVcon), 0o600))
		ok, errs := ValidateFile(path)
		s.True(ok)
		s.Empty(errs)

		bad := filepath.Join(dir, "bad.json")
		s.Require().NoError(os.WriteFile(bad, []byte("nope"), 0o600))
		_, errs = ValidateFile(bad)
		s.Equal([]string{"Invalid JSON format"}, errs)
	})
}
