package checksheet

// Report summarizes a render pass.
type Report struct {
	// Generated lists the sheets that were (re)built.
	Generated []string `json:"generated,omitempty"`
	// Skipped lists unchanged sheets.
	Skipped []string `json:"skipped,omitempty"`
	// Renamed maps old sheet names to new ones.
	Renamed map[string]string `json:"renamed,omitempty"`
	// Removed lists sheets deleted because their node disappeared.
	Removed []string `json:"removed,omitempty"`
	// MergedRows counts rows whose user values were restored.
	MergedRows int `json:"merged_rows"`
	// MissingImages lists referenced image files that were not found.
	MissingImages []string `json:"missing_images,omitempty"`
	// FailedImages lists image files that exist but could not be embedded.
	FailedImages []string `json:"failed_images,omitempty"`
}
