package model

import "testing"

func TestDetectClipType(t *testing.T) {
	tests := []struct {
		mime string
		want ClipType
	}{
		{"image/png", ClipImage},
		{"IMAGE/JPEG", ClipImage},
		{"video/mp4", ClipVideo},
		{"audio/mpeg", ClipAudio},
		{"application/pdf", ClipDocument},
		{"text/plain; charset=utf-8", ClipDocument},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", ClipDocument},
		{"application/zip", ClipFile},
		{"", ClipFile},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := DetectClipType(tt.mime); got != tt.want {
				t.Errorf("DetectClipType(%q) = %q, want %q", tt.mime, got, tt.want)
			}
		})
	}
}

func TestPayloadTypeMatchesHeader(t *testing.T) {
	payloads := []Payload{&Text{}, &Image{}, &Video{}, &Audio{}, &Document{}, &File{}}
	for i, p := range payloads {
		c := NewClip("u1", p)
		if c.Type != ClipTypes[i] {
			t.Errorf("NewClip(%T).Type = %q, want %q", p, c.Type, ClipTypes[i])
		}
	}
}

func TestClipObject(t *testing.T) {
	text := NewClip("u1", &Text{Content: "hello"})
	if text.Object() != nil {
		t.Error("text clip should not expose a stored object")
	}

	img := NewClip("u1", &Image{StoredObject: StoredObject{Key: "u1/k", Size: 3}})
	obj := img.Object()
	if obj == nil || obj.Key != "u1/k" {
		t.Fatalf("Object() = %+v, want key u1/k", obj)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	if err != nil || f.ClipType() != nil {
		t.Errorf("empty filter should mean all, got %q, %v", f, err)
	}

	f, err = ParseFilter("image")
	if err != nil {
		t.Fatalf("ParseFilter(image) error = %v", err)
	}
	if ct := f.ClipType(); ct == nil || *ct != ClipImage {
		t.Errorf("ClipType() = %v, want image", ct)
	}

	if _, err := ParseFilter("spreadsheet"); err == nil {
		t.Error("ParseFilter should reject unknown types")
	}
}

func TestParseSort(t *testing.T) {
	if ParseSort("newest") != SortNewest {
		t.Error("newest should sort descending")
	}
	for _, s := range []string{"", "oldest", "bogus"} {
		if ParseSort(s) != SortOldest {
			t.Errorf("ParseSort(%q) should default to ascending", s)
		}
	}
}

func TestParseProvider(t *testing.T) {
	if p, _ := ParseProvider("github"); p != ProviderGitHub {
		t.Errorf("ParseProvider(github) = %q", p)
	}
	if p, _ := ParseProvider("GOOGLE"); p != ProviderGoogle {
		t.Errorf("ParseProvider(GOOGLE) = %q", p)
	}
	if _, err := ParseProvider("gitlab"); err == nil {
		t.Error("ParseProvider should reject unknown providers")
	}
}
