package constants

import "strings"

// Format identifies a supported resume document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDoc  Format = "doc"
	FormatDocx Format = "docx"
)

// AcceptedMIMETypes maps the declared MIME types we accept to their format.
var AcceptedMIMETypes = map[string]Format{
	"application/pdf":    FormatPDF,
	"application/msword": FormatDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDocx,
}

// AcceptedExtensions maps lowercased extensions (sans dot) to their format.
var AcceptedExtensions = map[string]Format{
	"pdf":  FormatPDF,
	"doc":  FormatDoc,
	"docx": FormatDocx,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// FormatForMIME returns the format for a declared MIME type, ignoring any
// parameters ("application/pdf; charset=binary").
func FormatForMIME(mime string) (Format, bool) {
	base := strings.TrimSpace(strings.ToLower(mime))
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	f, ok := AcceptedMIMETypes[base]
	return f, ok
}

// FormatForExtension returns the format for a filename extension.
func FormatForExtension(ext string) (Format, bool) {
	f, ok := AcceptedExtensions[NormalizeExt(ext)]
	return f, ok
}
