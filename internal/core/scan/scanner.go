// Package scan performs the content-level safety check on validated uploads.
package scan

import (
	"bytes"
	"context"
	"log/slog"
)

// Result is a scan verdict. Reason is for logs only and must never be echoed
// to the uploader.
type Result struct {
	Safe   bool
	Reason string
}

// Scanner is a pluggable safety check. Implementations must be conservative:
// an ambiguous verdict is a rejection, because a missed threat costs far more
// than a re-upload.
type Scanner interface {
	Scan(ctx context.Context, data []byte) (Result, error)
}

// HeuristicScanner flags payloads carrying executable code or active content
// inside document containers. It is the default Scanner; deployments with a
// real malware engine swap in their own implementation.
type HeuristicScanner struct {
	log *slog.Logger
}

func NewHeuristicScanner(log *slog.Logger) *HeuristicScanner {
	if log == nil {
		log = slog.Default()
	}
	return &HeuristicScanner{log: log}
}

var _ Scanner = (*HeuristicScanner)(nil)

// eicarSignature is the standard antivirus test string.
const eicarSignature = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

var executableMagics = [][]byte{
	{'M', 'Z'},                   // PE
	{0x7F, 'E', 'L', 'F'},        // ELF
	{0xCF, 0xFA, 0xED, 0xFE},     // Mach-O 64
	{0xCA, 0xFE, 0xBA, 0xBE},     // Mach-O fat / class file
	{'#', '!', '/'},              // script with shebang
}

// pdfActiveContent markers indicate scripting or auto-exec behavior embedded
// in a PDF.
var pdfActiveContent = [][]byte{
	[]byte("/JavaScript"),
	[]byte("/JS"),
	[]byte("/Launch"),
	[]byte("/EmbeddedFile"),
}

func (s *HeuristicScanner) Scan(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for _, magic := range executableMagics {
		if bytes.HasPrefix(data, magic) {
			return s.reject("executable payload"), nil
		}
	}

	if bytes.Contains(data, []byte(eicarSignature)) {
		return s.reject("eicar test signature"), nil
	}

	if bytes.HasPrefix(data, []byte("%PDF-")) {
		for _, marker := range pdfActiveContent {
			if bytes.Contains(data, marker) {
				return s.reject("pdf active content: " + string(marker)), nil
			}
		}
	}

	// Office containers: a macro project inside a zip (.docx with macros
	// saved under the wrong name) or an OLE file.
	if bytes.Contains(data, []byte("vbaProject.bin")) {
		return s.reject("embedded macro project"), nil
	}

	return Result{Safe: true}, nil
}

func (s *HeuristicScanner) reject(reason string) Result {
	s.log.Warn("scan rejected payload", "reason", reason)
	return Result{Safe: false, Reason: reason}
}
