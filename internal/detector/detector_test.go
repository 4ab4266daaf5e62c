package detector

import (
	"testing"
)

func TestDetector_Detect(t *testing.T) {
	d := Shared()

	tests := []struct {
		name     string
		text     string
		wantLang string
		wantTag  string
		wantOK   bool
	}{
		{
			name:   "empty text",
			text:   "",
			wantOK: false,
		},
		{
			name:   "whitespace only",
			text:   " \n\t ",
			wantOK: false,
		},
		{
			name:     "english text",
			text:     "Hello, this is a test in English.",
			wantLang: "English",
			wantTag:  "en",
			wantOK:   true,
		},
		{
			name:     "ukrainian text",
			text:     "Привіт, це тест українською мовою.",
			wantLang: "Ukrainian",
			wantTag:  "uk",
			wantOK:   true,
		},
		{
			name:     "german text",
			text:     "Hallo, das ist ein Test auf Deutsch.",
			wantLang: "German",
			wantTag:  "de",
			wantOK:   true,
		},
		{
			name:     "french text",
			text:     "Bonjour, ceci est un test en français.",
			wantLang: "French",
			wantTag:  "fr",
			wantOK:   true,
		},
		{
			name:     "spanish text",
			text:     "Hola, esto es una prueba en español.",
			wantLang: "Spanish",
			wantTag:  "es",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, ok := d.Detect(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Detect(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if det.Language != tt.wantLang || det.Tag != tt.wantTag {
				t.Errorf("Detect(%q) = %s/%s, want %s/%s", tt.text, det.Language, det.Tag, tt.wantLang, tt.wantTag)
			}
			if det.Confidence <= 0 || det.Confidence > 1 {
				t.Errorf("Detect(%q) confidence = %v, want (0, 1]", tt.text, det.Confidence)
			}
		})
	}
}

func TestDetector_DetectTag(t *testing.T) {
	tag, ok := Shared().DetectTag("To jest test po polsku.")
	if !ok || tag != "pl" {
		t.Errorf("DetectTag = %q, %v; want pl, true", tag, ok)
	}
}

func TestShared_ReturnsSameInstance(t *testing.T) {
	if Shared() != Shared() {
		t.Error("expected Shared to return one detector")
	}
}
