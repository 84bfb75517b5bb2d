package domain

// FileRef is a handle to a remote file owned by the file store. The
// orchestrator borrows it for one delivery cycle.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`

	// LocalPath is set once the file has been downloaded for the cycle.
	LocalPath string `json:"local_path,omitempty"`
	// PublicURL is a temporary link for URL-consuming platforms.
	PublicURL string `json:"public_url,omitempty"`
}

// FolderStats counts files remaining in each source folder.
type FolderStats struct {
	Folders map[SourceID]int `json:"folders"`
	Total   int              `json:"total"`
}
