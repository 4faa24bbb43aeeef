package vcon

var defaultMimetypes = []string{
	"text/plain",
	"audio/x-wav",
	"audio/wav",
	"audio/wave",
	"audio/mpeg",
	"audio/mp3",
	"audio/x-mp3",
	"audio/ogg",
	"audio/webm",
	"audio/x-m4a",
	"audio/aac",
	"video/x-mp4",
	"video/ogg",
	"video/mp4",
	"video/quicktime",
	"video/webm",
	"video/x-msvideo",
	"multipart/mixed",
	"message/external-body",
}

// DefaultMimetypes returns the dialog mimetypes accepted when no allow-list
// is configured.
func DefaultMimetypes() []string {
	return append([]string(nil), defaultMimetypes...)
}
