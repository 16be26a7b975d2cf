// Package validate inspects uploaded bytes and declared metadata before any
// expensive pipeline work happens.
package validate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/resumelens/resumelens/constants"
)

// Result is the outcome of validating one upload. Errors holds every
// violation found, not just the first.
type Result struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Config bounds accepted uploads.
type Config struct {
	MinSize        int64
	MaxSize        int64
	MaxFilenameLen int
}

const (
	DefaultMinSize        = 1024             // 1 KB; anything smaller is not a real resume
	DefaultMaxSize        = 10 * 1024 * 1024 // 10 MB
	DefaultMaxFilenameLen = 255
)

// Validator checks uploads against a fixed configuration. Validate is a pure
// function of its inputs, so a Validator is safe for concurrent use.
type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	if cfg.MinSize <= 0 {
		cfg.MinSize = DefaultMinSize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxFilenameLen <= 0 {
		cfg.MaxFilenameLen = DefaultMaxFilenameLen
	}
	return &Validator{cfg: cfg}
}

// unsafeFilename matches path traversal, separators, shell and markup
// metacharacters, and control bytes.
var unsafeFilename = regexp.MustCompile("\\.\\.|[/\\\\<>:\"'`|?*;$&\x00-\x1f]")

var magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Validate runs every check against the payload and declared metadata and
// collects all violations so the caller gets the complete list in one pass.
func (v *Validator) Validate(data []byte, filename, declaredMIME string) Result {
	var res Result

	mimeFormat, mimeOK := constants.FormatForMIME(declaredMIME)
	if !mimeOK {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported file type %q: accepted types are PDF, DOC and DOCX", declaredMIME))
	}

	ext := constants.NormalizeExt(filepath.Ext(filename))
	extFormat, extOK := constants.FormatForExtension(ext)
	if !extOK {
		res.Errors = append(res.Errors, fmt.Sprintf("unsupported file extension %q: accepted extensions are .pdf, .doc and .docx", ext))
	}

	if mimeOK && extOK && mimeFormat != extFormat {
		res.Errors = append(res.Errors, fmt.Sprintf("file extension .%s does not match declared type %q", ext, declaredMIME))
	}

	size := int64(len(data))
	switch {
	case size == 0:
		res.Errors = append(res.Errors, "file is empty")
	case size < v.cfg.MinSize:
		res.Errors = append(res.Errors, fmt.Sprintf("file is too small (%d bytes, minimum %d)", size, v.cfg.MinSize))
	case size > v.cfg.MaxSize:
		res.Errors = append(res.Errors, fmt.Sprintf("file is too large (%d bytes, maximum %d)", size, v.cfg.MaxSize))
	}

	if size > 0 && mimeOK {
		if err := checkStructure(data, mimeFormat); err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
	}

	if msg := checkFilename(filename, v.cfg.MaxFilenameLen); msg != "" {
		res.Errors = append(res.Errors, msg)
	}

	res.OK = len(res.Errors) == 0
	return res
}

// checkStructure probes the payload's leading bytes against the declared
// format, catching truncated or mislabeled files cheaply.
func checkStructure(data []byte, format constants.Format) error {
	switch format {
	case constants.FormatPDF:
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			return fmt.Errorf("file does not look like a valid PDF")
		}
	case constants.FormatDoc:
		if len(data) < len(magicOLE) || !bytes.HasPrefix(data, magicOLE) {
			return fmt.Errorf("file does not look like a valid Word document")
		}
	case constants.FormatDocx:
		if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
			return fmt.Errorf("file does not look like a valid Word document")
		}
	}
	return nil
}

func checkFilename(filename string, maxLen int) string {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "filename is empty"
	}
	if len(name) > maxLen {
		return fmt.Sprintf("filename exceeds %d characters", maxLen)
	}
	if unsafeFilename.MatchString(name) {
		return "filename contains unsafe characters"
	}
	return ""
}
