// Package vcon models vCon documents: structured JSON records of a
// conversation between parties, with dialog turns, attachments, analysis
// results and an optional signature.
//
// Documents are built with New, parsed with BuildFromJSON or wrapped from an
// existing value with FromMap and FromDict. They grow through the Add*
// methods, are checked by an explicit validation pass (IsValid, Validator)
// and serialize to a canonical, key-ordered form (ToDict, ToJSON).
//
// Sign embeds a JWS general-serialization envelope (payload, signatures)
// over the compact JSON of the document content. Verify recomputes that
// content, so any edit made after signing makes it fail. A signed document
// rejects further mutation.
//
// Optional fields use optional.Value: an absent field is omitted from the
// serialized form, never written as null.
package vcon
