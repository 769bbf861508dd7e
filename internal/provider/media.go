package provider

import (
	"net/url"
	"strings"
)

// MaxMediaPerMessage is the provider hard cap on attachments per message.
const MaxMediaPerMessage = 10

var allowedMediaExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true, "ppt": true, "pptx": true,
	"mp3": true, "aac": true, "ogg": true, "opus": true, "amr": true,
	"mp4": true, "avi": true, "mov": true, "wmv": true, "flv": true,
}

type MediaValidation struct {
	Valid bool   `json:"valid"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidateMediaURL checks that a media URL is fetchable by the provider:
// http(s) with a host, and an extension in the supported set.
func ValidateMediaURL(raw string) MediaValidation {
	if raw == "" {
		return MediaValidation{Valid: false, Error: "empty URL"}
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return MediaValidation{Valid: false, Error: "invalid URL"}
	}

	path := u.Path
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return MediaValidation{Valid: false, Error: "missing file extension"}
	}
	ext := strings.ToLower(path[idx+1:])
	if !allowedMediaExtensions[ext] {
		return MediaValidation{Valid: false, Error: "extension not allowed: ." + ext}
	}

	return MediaValidation{Valid: true, URL: raw}
}
