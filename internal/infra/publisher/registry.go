package publisher

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// Settings configure a single publisher.
type Settings struct {
	// BaseURL overrides the platform API root (tests, proxies).
	BaseURL string
	// Credentials holds the platform secrets by key, see New.
	Credentials map[string]string
	HTTPClient  *http.Client
}

// requiredCredentials lists the credential keys each platform needs.
var requiredCredentials = map[domain.Platform][]string{
	domain.PlatformDiscord:   {"bot_token", "channel_id"},
	domain.PlatformTelegram:  {"bot_token", "chat_id"},
	domain.PlatformFacebook:  {"page_id", "access_token"},
	domain.PlatformInstagram: {"account_id", "access_token"},
	domain.PlatformThreads:   {"user_id", "access_token"},
	domain.PlatformTwitter:   {"api_key", "api_secret", "access_token", "access_token_secret"},
	domain.PlatformTumblr:    {"blog_name", "consumer_key", "consumer_secret", "oauth_token", "oauth_token_secret"},
}

// RequiredCredentials returns the credential keys platform needs.
func RequiredCredentials(platform domain.Platform) []string {
	return append([]string(nil), requiredCredentials[platform]...)
}

// New builds the publisher for platform, failing when credentials are
// missing.
func New(platform domain.Platform, s Settings) (Publisher, error) {
	keys, ok := requiredCredentials[platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(s.Credentials[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing credentials: %s", platform, strings.Join(missing, ", "))
	}

	c := s.Credentials
	switch platform {
	case domain.PlatformDiscord:
		return NewDiscord(s.BaseURL, c["bot_token"], c["channel_id"], s.HTTPClient), nil
	case domain.PlatformTelegram:
		return NewTelegram(s.BaseURL, c["bot_token"], c["chat_id"], s.HTTPClient), nil
	case domain.PlatformFacebook:
		return NewFacebook(s.BaseURL, c["page_id"], c["access_token"], s.HTTPClient), nil
	case domain.PlatformInstagram:
		return NewInstagram(s.BaseURL, c["account_id"], c["access_token"], s.HTTPClient), nil
	case domain.PlatformThreads:
		return NewThreads(s.BaseURL, c["user_id"], c["access_token"], s.HTTPClient), nil
	case domain.PlatformTwitter:
		return NewTwitter(s.BaseURL, OAuth1Credentials{
			ConsumerKey:    c["api_key"],
			ConsumerSecret: c["api_secret"],
			Token:          c["access_token"],
			TokenSecret:    c["access_token_secret"],
		}, s.HTTPClient), nil
	default:
		return NewTumblr(s.BaseURL, c["blog_name"], OAuth1Credentials{
			ConsumerKey:    c["consumer_key"],
			ConsumerSecret: c["consumer_secret"],
			Token:          c["oauth_token"],
			TokenSecret:    c["oauth_token_secret"],
		}, s.HTTPClient), nil
	}
}
