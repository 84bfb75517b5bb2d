package domain

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type SourceID string

const (
	SourceShortVideo   SourceID = "ig"
	SourceGeneralVideo SourceID = "general"
	SourceImage        SourceID = "image"
)

// Source is one category of media pulled from the file store per run.
type Source struct {
	ID SourceID
	// Media decides whether publishers receive PostImage or PostVideo.
	Media MediaType
	// CaptionGroup selects the caption generator prompt.
	CaptionGroup string
}

// Sources lists the categories processed each run, in order.
var Sources = []Source{
	{ID: SourceShortVideo, Media: MediaVideo, CaptionGroup: "instagram"},
	{ID: SourceGeneralVideo, Media: MediaVideo, CaptionGroup: "general_video"},
	{ID: SourceImage, Media: MediaImage, CaptionGroup: "image"},
}
