package util

import (
	"mime"
	"path"
	"strings"
)

// FilenameFromDisposition returns the filename of an attachment Content-Disposition header, or "" if the header
// isn't an attachment or names nothing usable. Directory components are stripped.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	disposition, params, err := mime.ParseMediaType(header)
	if err != nil || disposition != "attachment" {
		return ""
	}
	name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// IsAttachment reports whether a Content-Disposition header marks the response as an attachment.
func IsAttachment(header string) bool {
	disposition, _, err := mime.ParseMediaType(header)
	if err != nil {
		// Fall back to a substring check for headers too malformed to parse
		return strings.Contains(strings.ToLower(header), "attachment")
	}
	return disposition == "attachment"
}
