package domain

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformThreads   Platform = "threads"
	PlatformTwitter   Platform = "twitter"
	PlatformTelegram  Platform = "telegram"
	PlatformDiscord   Platform = "discord"
	PlatformTumblr    Platform = "tumblr"
)

// PlatformOrder is the fixed fan-out order. Delivery walks platforms in this
// order so runs are reproducible regardless of config map ordering.
var PlatformOrder = []Platform{
	PlatformInstagram,
	PlatformFacebook,
	PlatformThreads,
	PlatformTwitter,
	PlatformTelegram,
	PlatformDiscord,
	PlatformTumblr,
}

// IsKnown reports whether p is one of the supported platforms.
func (p Platform) IsKnown() bool {
	for _, known := range PlatformOrder {
		if p == known {
			return true
		}
	}
	return false
}
