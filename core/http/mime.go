package http

import "path/filepath"

// DefaultContentType is used for bodies whose type is unknown
const DefaultContentType = "application/octet-stream"

// ContentType returns the MIME type for filename based on its extension.
// Matching is case-sensitive.
func ContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "text/javascript"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".txt":
		return "text/plain"
	default:
		return DefaultContentType
	}
}
