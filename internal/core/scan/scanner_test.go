package scan

import (
	"bytes"
	"context"
	"testing"
)

func TestHeuristicScannerVerdicts(t *testing.T) {
	s := NewHeuristicScanner(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		safe bool
	}{
		{"plain pdf", []byte("%PDF-1.4\nsome harmless resume text"), true},
		{"docx zip container", append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 64)...), true},
		{"windows executable", []byte("MZ\x90\x00 rest of a PE file"), false},
		{"elf binary", []byte("\x7fELF\x02\x01\x01"), false},
		{"macho binary", []byte{0xCF, 0xFA, 0xED, 0xFE, 0x00}, false},
		{"shell script", []byte("#!/bin/sh\nrm -rf /"), false},
		{"eicar embedded mid-file", append([]byte("%PDF-1.4 padding "), []byte(eicarSignature)...), false},
		{"pdf with javascript", []byte("%PDF-1.4 /OpenAction << /JavaScript (app.alert(1)) >>"), false},
		{"pdf with launch action", []byte("%PDF-1.4 /Launch (cmd.exe)"), false},
		{"pdf with embedded file", []byte("%PDF-1.4 /EmbeddedFile stream"), false},
		{"non-pdf containing pdf markers", []byte("plain text mentioning /Launch"), true},
		{"macro project in container", append([]byte("PK\x03\x04"), []byte("word/vbaProject.bin")...), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Scan(ctx, tt.data)
			if err != nil {
				t.Fatalf("scan error: %v", err)
			}
			if res.Safe != tt.safe {
				t.Fatalf("Safe = %v, want %v (reason %q)", res.Safe, tt.safe, res.Reason)
			}
			if !res.Safe && res.Reason == "" {
				t.Fatal("rejection carries no reason for the logs")
			}
		})
	}
}

func TestHeuristicScannerCanceledContext(t *testing.T) {
	s := NewHeuristicScanner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Scan(ctx, []byte("%PDF-1.4")); err == nil {
		t.Fatal("expected context error")
	}
}
