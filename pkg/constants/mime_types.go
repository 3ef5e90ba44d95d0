package constants

import "strings"

// MIME types used for stored objects and API responses
const (
	MimeTypeJSON      = "application/json"
	MimeTypeCSV       = "text/csv"
	MimeTypePlainText = "text/plain"
)

// ContentTypeForKey returns the MIME type matching a stored object's extension
func ContentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, DescriptionExtension):
		return MimeTypeJSON
	case strings.HasSuffix(key, DataExtension):
		return MimeTypeCSV
	default:
		return MimeTypePlainText
	}
}
