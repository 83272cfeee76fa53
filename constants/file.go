package constants

import "strings"

// Input formats accepted by the pipeline.
const (
	TEXT  = "TEXT"
	IMAGE = "IMAGE"
	PDF   = "PDF"
)

// DefaultCurrency is assumed when nothing else is known. The primary target
// domain is INR-denominated medical bills.
const DefaultCurrency = "INR"

// AllowedExtensions holds the file extensions the OCR path accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a (normalized or raw) extension to an input format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff":
		return IMAGE
	case "txt":
		return TEXT
	default:
		return ""
	}
}

// SniffFormat inspects leading bytes and reports the binary format, or ""
// when the buffer is not a recognized image/PDF payload.
func SniffFormat(b []byte) string {
	switch {
	case len(b) >= 5 && string(b[:5]) == "%PDF-":
		return PDF
	case len(b) >= 8 && string(b[:8]) == "\x89PNG\r\n\x1a\n":
		return IMAGE
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return IMAGE
	case len(b) >= 4 && (string(b[:4]) == "II*\x00" || string(b[:4]) == "MM\x00*"):
		return IMAGE
	default:
		return ""
	}
}
