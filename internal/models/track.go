package models

// Track is a playable song entry. Immutable once obtained from the
// playlist provider.
type Track struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	PreviewURL string `json:"previewUrl"`
	ArtworkURL string `json:"artwork,omitempty"`
}
