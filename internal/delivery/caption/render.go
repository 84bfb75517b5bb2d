package caption

import (
	"strings"
	"unicode"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// DefaultTagLimit applies to platforms without an entry in TagLimits.
const DefaultTagLimit = 4

// TagLimits caps the number of hashtags rendered per platform.
var TagLimits = map[domain.Platform]int{
	domain.PlatformInstagram: 4,
	domain.PlatformFacebook:  4,
	domain.PlatformTwitter:   3,
}

// Build renders a payload as "text\n\n#tags\n\nbrand" with the platform's tag
// limit applied.
func Build(payload domain.CaptionPayload, platform domain.Platform) string {
	limit, ok := TagLimits[platform]
	if !ok {
		limit = DefaultTagLimit
	}

	tags := payload.Tags
	if len(tags) > limit {
		tags = tags[:limit]
	}
	rendered := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		rendered = append(rendered, "#"+tag)
	}

	out := strings.TrimSpace(payload.Text) + "\n\n" +
		strings.Join(rendered, " ") + "\n\n" +
		strings.TrimSpace(payload.BrandTag)
	return strings.TrimSpace(out)
}

// Trim cuts text to at most limit characters, backing off to the last
// space so words are not split. Text without a space is hard-cut.
func Trim(text string, limit int) string {
	runes := []rune(text)
	if limit < 0 || len(runes) <= limit {
		return text
	}

	cut := string(runes[:limit])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i >= 0 {
		return cut[:i]
	}
	return cut
}

// Render returns the caption a platform receives. Structured platforms get
// the payload untouched; the rest get a built, trimmed caption.
func Render(payload domain.CaptionPayload, platform domain.Platform, limit int, structured bool) domain.Caption {
	if structured {
		return domain.Caption{Text: payload.Text, Payload: payload}
	}
	return domain.Caption{
		Text:    Trim(Build(payload, platform), limit),
		Payload: payload,
	}
}
