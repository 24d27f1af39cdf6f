package utils

import (
	"net/url"
	"strings"
)

// BuildObjectAccessURL resolves the public URL of an object key. base may be
// a prefix ("https://cdn.example.com/avatars") or a template containing
// "{objectKey}"; when empty the public GCS URL of the bucket is used.
func BuildObjectAccessURL(base string, bucket string, objectKey string) string {
	base = strings.TrimSpace(base)
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		if strings.Contains(base, "?") {
			return base + url.QueryEscape(objectKey)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}

	if bucket != "" {
		return "https://storage.googleapis.com/" + bucket + "/" + objectKey
	}
	return objectKey
}
