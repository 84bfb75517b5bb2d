package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const (
	DefaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel    = "llama-3.1-8b-instant"
	DefaultBrandTag = "#BoyishLife"
	defaultTimeout  = 30 * time.Second
)

// fallbackTags are used when generation fails.
var fallbackTags = []string{"nature", "life"}

// Config holds caption generator settings.
type Config struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Generator produces captions from file names using an OpenAI-compatible
// chat completion endpoint. Generation never fails: any error degrades to a
// caption built from the file name.
type Generator struct {
	cfg        Config
	brandTag   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewGenerator creates a caption generator.
func NewGenerator(cfg Config, brandTag string) *Generator {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if brandTag == "" {
		brandTag = DefaultBrandTag
	}
	return &Generator{
		cfg:        cfg,
		brandTag:   brandTag,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        slog.Default().With("component", "caption"),
	}
}

type prompt struct {
	tagCount int
	user     string
}

func promptFor(group, cleanName string) prompt {
	switch group {
	case "instagram":
		return prompt{4, fmt.Sprintf("Write an aesthetic, poetic caption for an Instagram Reel titled '%s'. Max 100 words.", cleanName)}
	case "general_video":
		return prompt{4, fmt.Sprintf("Write an engaging, storytelling caption for a video about '%s'. Max 150 words.", cleanName)}
	default:
		return prompt{3, fmt.Sprintf("Write a short, punchy caption for a photo titled '%s'. Max 100 words.", cleanName)}
	}
}

// Generate returns a caption payload for filename. group selects the prompt
// style: "instagram", "general_video" or "image".
func (g *Generator) Generate(ctx context.Context, filename, group string) domain.CaptionPayload {
	cleanName := CleanName(filename)

	text, err := g.complete(ctx, promptFor(group, cleanName))
	if err != nil {
		g.log.Error("Caption generation failed, using fallback", "file", filename, "error", err)
		return domain.CaptionPayload{
			Text:     cleanName,
			Tags:     append([]string(nil), fallbackTags...),
			BrandTag: g.brandTag,
		}
	}

	body, tags := ParseHashtags(text)
	return domain.CaptionPayload{Text: body, Tags: tags, BrandTag: g.brandTag}
}

func (g *Generator) complete(ctx context.Context, p prompt) (string, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return "", errors.New("caption api key not configured")
	}

	system := fmt.Sprintf(
		"You are a social media manager. Generate a caption based on the filename. "+
			"CRITICAL: End the caption with exactly %d relevant hashtags based on the filename. "+
			"Do NOT add the %s hashtag (I will add it myself).",
		p.tagCount, g.brandTag,
	)
	payload := map[string]any{
		"model": g.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": p.user},
		},
		"temperature": 0.7,
		"max_tokens":  500,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(g.cfg.APIKey))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("caption endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", errors.New("completion has no content")
	}
	return decoded.Choices[0].Message.Content, nil
}

// CleanName turns "golden_hour.mp4" into "golden hour".
func CleanName(filename string) string {
	base := filepath.Base(filename)
	return strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), "_", " ")
}

// ParseHashtags splits generated text into the body before the first '#'
// and the hashtags that follow. Quotes are stripped; tags shorter than two
// characters are dropped.
func ParseHashtags(raw string) (string, []string) {
	raw = strings.NewReplacer(`"`, "", "'", "").Replace(strings.TrimSpace(raw))

	parts := strings.Split(raw, "#")
	body := strings.TrimSpace(parts[0])

	var tags []string
	for _, part := range parts[1:] {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		tag := strings.NewReplacer(",", "", ".", "").Replace(fields[0])
		if len(tag) > 1 {
			tags = append(tags, tag)
		}
	}
	return body, tags
}
