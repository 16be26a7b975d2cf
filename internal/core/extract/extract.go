// Package extract converts supported binary resume formats into normalized
// plain text plus lightweight structural metadata. One strategy per format,
// selected through a format lookup table.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumelens/resumelens/constants"
	"github.com/resumelens/resumelens/internal/models"
)

// Result is a successful extraction. Text is normalized UTF-8; the counts are
// computed from it deterministically, independent of the source format.
type Result struct {
	Text      string
	WordCount int
	CharCount int
	Method    string
	Sections  []models.Section
}

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	KindUnsupported ErrorKind = "unsupported-format"
	KindTimeout     ErrorKind = "timeout"
	KindCorrupted   ErrorKind = "corrupted-content"
)

// Error is a failed extraction attempt.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the stable, user-safe description for this failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindTimeout:
		return "text extraction timed out"
	case KindUnsupported:
		return "this file format is not supported for text extraction"
	default:
		return "could not extract text from this file; it may be corrupted or image-based"
	}
}

// Strategy extracts raw text from one binary format. It returns the raw text
// and the concrete method path that produced it.
type Strategy interface {
	Extract(ctx context.Context, data []byte) (text string, method string, err error)
}

// Config bounds each extraction attempt.
type Config struct {
	Timeout time.Duration
}

const DefaultTimeout = 30 * time.Second

// Extractor dispatches to a format-specific strategy and enforces the
// per-attempt timeout. A strategy that overruns is abandoned, never crashed
// into.
type Extractor struct {
	strategies map[constants.Format]Strategy
	timeout    time.Duration
	log        *slog.Logger
}

// New builds an Extractor with the default strategies for PDF, DOC and DOCX
// registered.
func New(cfg Config, log *slog.Logger) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Extractor{
		strategies: map[constants.Format]Strategy{},
		timeout:    cfg.Timeout,
		log:        log,
	}
	e.Register(constants.FormatPDF, &pdfStrategy{})
	e.Register(constants.FormatDoc, &docStrategy{})
	e.Register(constants.FormatDocx, &docxStrategy{})
	return e
}

// Register installs or replaces the strategy for a format.
func (e *Extractor) Register(format constants.Format, s Strategy) {
	e.strategies[format] = s
}

// Extract runs the strategy for the declared MIME type under the configured
// timeout, then normalizes the text and derives counts and sections.
func (e *Extractor) Extract(ctx context.Context, data []byte, declaredMIME string) (*Result, error) {
	format, ok := constants.FormatForMIME(declaredMIME)
	if !ok {
		return nil, &Error{Kind: KindUnsupported, Err: fmt.Errorf("no strategy for mime type %q", declaredMIME)}
	}
	strategy, ok := e.strategies[format]
	if !ok {
		return nil, &Error{Kind: KindUnsupported, Err: fmt.Errorf("no strategy registered for format %q", format)}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		text   string
		method string
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		text, method, err := strategy.Extract(attemptCtx, data)
		done <- outcome{text: text, method: method, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			e.log.Warn("extraction timed out", "format", format, "timeout", e.timeout)
			return nil, &Error{Kind: KindTimeout, Err: attemptCtx.Err()}
		}
		return nil, attemptCtx.Err()
	case out := <-done:
		if out.err != nil {
			var xerr *Error
			if errors.As(out.err, &xerr) {
				return nil, xerr
			}
			return nil, &Error{Kind: KindCorrupted, Err: out.err}
		}
		text := NormalizeText(out.text)
		if text == "" {
			return nil, &Error{Kind: KindCorrupted, Err: errors.New("no text content extracted")}
		}
		e.log.Debug("extraction ok",
			"format", format,
			"method", out.method,
			"duration_ms", time.Since(start).Milliseconds(),
			"chars", len(text),
		)
		return &Result{
			Text:      text,
			WordCount: CountWords(text),
			CharCount: CountChars(text),
			Method:    out.method,
			Sections:  DetectSections(text),
		}, nil
	}
}
