package publisher

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuth1Credentials are the four OAuth 1.0a user-context secrets.
type OAuth1Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// oauth1Signer signs requests with HMAC-SHA1. Multipart and JSON bodies
// are not part of the signature base; url-encoded form bodies are.
type oauth1Signer struct {
	creds OAuth1Credentials
	now   func() time.Time
	nonce func() string
}

func newOAuth1Signer(creds OAuth1Credentials) *oauth1Signer {
	return &oauth1Signer{
		creds: creds,
		now:   time.Now,
		nonce: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// authorize sets the Authorization header on req. form holds the
// url-encoded body parameters, nil for other body types.
func (s *oauth1Signer) authorize(req *http.Request, form url.Values) {
	oauth := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_token":            s.creds.Token,
		"oauth_version":          "1.0",
	}

	params := url.Values{}
	for k, vs := range req.URL.Query() {
		params[k] = append(params[k], vs...)
	}
	for k, vs := range form {
		params[k] = append(params[k], vs...)
	}
	for k, v := range oauth {
		params.Set(k, v)
	}
	oauth["oauth_signature"] = oauth1Signature(req.Method, req.URL, params, s.creds.ConsumerSecret, s.creds.TokenSecret)

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+`="`+percentEncode(oauth[k])+`"`)
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(parts, ", "))
}

func oauth1Signature(method string, u *url.URL, params url.Values, consumerSecret, tokenSecret string) string {
	pairs := make([]string, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
		}
	}
	sort.Strings(pairs)

	base := strings.ToUpper(method) + "&" +
		percentEncode(signatureBaseURL(u)) + "&" +
		percentEncode(strings.Join(pairs, "&"))
	key := percentEncode(consumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signatureBaseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "https" && strings.HasSuffix(host, ":443")) || (scheme == "http" && strings.HasSuffix(host, ":80")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	return scheme + "://" + host + u.EscapedPath()
}

// percentEncode applies RFC 3986 encoding: only unreserved characters pass.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}
