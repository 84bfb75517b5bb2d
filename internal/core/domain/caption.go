package domain

// CaptionPayload is the structured caption produced by the caption generator.
type CaptionPayload struct {
	Text     string   `json:"text"`
	Tags     []string `json:"tags"`
	BrandTag string   `json:"brand_tag"`
}

// Caption is what a publisher receives. Text is the rendered, platform-limited
// caption; Payload is the structured form for platforms that do their own
// formatting.
type Caption struct {
	Text    string
	Payload CaptionPayload
}
