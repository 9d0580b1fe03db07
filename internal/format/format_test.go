package format

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"jpeg", JPEG},
		{"JPG", JPEG},
		{" png ", PNG},
		{"webp", WebP},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "gif", "tiff", "pdf"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q): expected error", bad)
		}
	}
}

func TestFormatText(t *testing.T) {
	var f Format
	if err := f.UnmarshalText([]byte("webp")); err != nil {
		t.Fatal(err)
	}
	if f != WebP || f.String() != "webp" || f.MIME() != "image/webp" {
		t.Fatalf("unexpected format %v (%s)", f, f.MIME())
	}

	if _, err := Format(0).MarshalText(); err == nil {
		t.Fatal("expected error marshalling zero format")
	}
	if Format(42).Valid() {
		t.Fatal("format 42 should be invalid")
	}
}
