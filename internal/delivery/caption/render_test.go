package caption

import (
	"strings"
	"testing"

	"github.com/vietddude/crosspost/internal/core/domain"
)

func TestBuild(t *testing.T) {
	payload := domain.CaptionPayload{
		Text:     "  Golden hour by the lake ",
		Tags:     []string{"sunset", "#lake", "nature", "calm", "evening"},
		BrandTag: "#BoyishLife",
	}

	tests := []struct {
		platform domain.Platform
		want     string
	}{
		{domain.PlatformTwitter, "Golden hour by the lake\n\n#sunset #lake #nature\n\n#BoyishLife"},
		{domain.PlatformInstagram, "Golden hour by the lake\n\n#sunset #lake #nature #calm\n\n#BoyishLife"},
		{domain.PlatformDiscord, "Golden hour by the lake\n\n#sunset #lake #nature #calm\n\n#BoyishLife"},
	}

	for _, tt := range tests {
		if got := Build(payload, tt.platform); got != tt.want {
			t.Errorf("Build(%s) = %q, want %q", tt.platform, got, tt.want)
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	got := Build(domain.CaptionPayload{Text: "just text"}, domain.PlatformTelegram)
	if got != "just text" {
		t.Errorf("got %q", got)
	}
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"under limit", "short caption", 50, "short caption"},
		{"exact limit", "abcde", 5, "abcde"},
		{"word boundary", "the quick brown fox", 12, "the quick"},
		{"no space hard cut", "abcdefghij", 4, "abcd"},
		{"multibyte counts runes", "héllo wörld again", 11, "héllo"},
		{"newline is a boundary", "line one\nline two", 12, "line one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trim(tt.text, tt.limit)
			if got != tt.want {
				t.Errorf("Trim(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
			if len([]rune(got)) > tt.limit {
				t.Errorf("result exceeds limit: %d runes", len([]rune(got)))
			}
		})
	}
}

func TestRender(t *testing.T) {
	payload := domain.CaptionPayload{
		Text:     strings.Repeat("word ", 100),
		Tags:     []string{"a", "b"},
		BrandTag: "#Brand",
	}

	c := Render(payload, domain.PlatformTwitter, 280, false)
	if len([]rune(c.Text)) > 280 {
		t.Errorf("rendered caption exceeds limit: %d", len([]rune(c.Text)))
	}
	if strings.HasSuffix(c.Text, "wor") {
		t.Errorf("caption cut mid-word: %q", c.Text[len(c.Text)-10:])
	}

	raw := Render(payload, domain.PlatformTumblr, 10, true)
	if raw.Text != payload.Text || len(raw.Payload.Tags) != 2 {
		t.Errorf("structured platforms should receive the payload untouched: %+v", raw)
	}
}
