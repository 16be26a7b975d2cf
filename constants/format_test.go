package constants

import "testing"

func TestFormatForMIME(t *testing.T) {
	tests := []struct {
		mime   string
		want   Format
		wantOK bool
	}{
		{"application/pdf", FormatPDF, true},
		{"application/pdf; charset=binary", FormatPDF, true},
		{"APPLICATION/PDF", FormatPDF, true},
		{"application/msword", FormatDoc, true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatDocx, true},
		{"text/plain", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatForMIME(tt.mime)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("FormatForMIME(%q) = (%q, %v), want (%q, %v)", tt.mime, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFormatForExtension(t *testing.T) {
	tests := []struct {
		ext    string
		want   Format
		wantOK bool
	}{
		{".pdf", FormatPDF, true},
		{"pdf", FormatPDF, true},
		{".DOCX", FormatDocx, true},
		{"doc", FormatDoc, true},
		{".txt", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatForExtension(tt.ext)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("FormatForExtension(%q) = (%q, %v), want (%q, %v)", tt.ext, got, ok, tt.want, tt.wantOK)
		}
	}
}
