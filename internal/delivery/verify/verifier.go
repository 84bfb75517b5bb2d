// Package verify checks media files against per-platform size limits before
// any network call is made.
package verify

import (
	"fmt"
	"os"
	"strings"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// DefaultLimitMB applies when a known platform has no limit for a media type.
const DefaultLimitMB = 10

const bytesPerMB = 1024 * 1024

// SizeLimit holds upload limits in megabytes.
type SizeLimit struct {
	Image float64
	Video float64
}

// Limits is the static upload limit table.
var Limits = map[domain.Platform]SizeLimit{
	domain.PlatformDiscord:   {Image: 10, Video: 10},
	domain.PlatformTwitter:   {Image: 5, Video: 512},
	domain.PlatformInstagram: {Image: 8, Video: 300},
	domain.PlatformFacebook:  {Image: 30, Video: 1024},
	domain.PlatformTelegram:  {Image: 10, Video: 50},
	domain.PlatformThreads:   {Image: 8, Video: 1024},
	domain.PlatformTumblr:    {Image: 10, Video: 100},
}

func (l SizeLimit) forMedia(media domain.MediaType) float64 {
	var limit float64
	switch domain.MediaType(strings.ToLower(string(media))) {
	case domain.MediaImage:
		limit = l.Image
	case domain.MediaVideo:
		limit = l.Video
	}
	if limit <= 0 {
		return DefaultLimitMB
	}
	return limit
}

// Verify reports whether the file at path may be uploaded to platform as
// media. A missing file fails; a platform without limits passes.
func Verify(path string, platform domain.Platform, media domain.MediaType) (bool, string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, "File not found"
	}

	limits, ok := Limits[domain.Platform(strings.ToLower(string(platform)))]
	if !ok {
		return true, "No limits defined for this platform"
	}

	maxMB := limits.forMedia(media)
	sizeMB := float64(info.Size()) / bytesPerMB
	if sizeMB > maxMB {
		return false, fmt.Sprintf(
			"File too large: %.2fMB (Max %gMB for %s %s)",
			sizeMB, maxMB, platform, media,
		)
	}
	return true, "Safe"
}
