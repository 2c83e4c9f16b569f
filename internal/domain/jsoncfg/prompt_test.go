package jsoncfg

import (
	"strings"
	"testing"

	"companion/internal/domain"
)

func TestGenerateJSONNormalizeDefaults(t *testing.T) {
	g := GenerateJSON{CharacterID: "  c1 "}
	g.Normalize()
	if g.CharacterID != "c1" {
		t.Fatalf("CharacterID = %q, want c1", g.CharacterID)
	}
	if g.Width != DefaultImageWidth || g.Height != DefaultImageHeight {
		t.Fatalf("dimensions = %dx%d, want defaults", g.Width, g.Height)
	}
	if g.Count != DefaultCount {
		t.Fatalf("Count = %d, want %d", g.Count, DefaultCount)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestGenerateJSONNormalizeCapsCountAndText(t *testing.T) {
	g := GenerateJSON{CharacterID: "c1", Count: 40, Text: strings.Repeat("a", MaxTextLength+10)}
	g.Normalize()
	if g.Count != MaxCount {
		t.Fatalf("Count = %d, want %d", g.Count, MaxCount)
	}
	if len([]rune(g.Text)) != MaxTextLength {
		t.Fatalf("text length = %d, want %d", len([]rune(g.Text)), MaxTextLength)
	}
}

func TestGenerateJSONValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      GenerateJSON
		wantErr string
	}{
		{name: "missing character", in: GenerateJSON{Width: 1024, Height: 1024, Count: 1}, wantErr: "character_id"},
		{name: "tiny width", in: GenerateJSON{CharacterID: "c", Width: 16, Height: 1024, Count: 1}, wantErr: "width"},
		{name: "huge height", in: GenerateJSON{CharacterID: "c", Width: 1024, Height: 9000, Count: 1}, wantErr: "height"},
		{name: "minor", in: GenerateJSON{CharacterID: "c", Width: 1024, Height: 1024, Count: 1, Character: &domain.CharacterAttributes{Age: 16}}, wantErr: "18"},
		{name: "ok", in: GenerateJSON{CharacterID: "c", Width: 768, Height: 1024, Count: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
