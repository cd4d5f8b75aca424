package domain

// SnippetSummary is the lightweight listing view of a snippet:
// identity and provenance without the waveform payload.
type SnippetSummary struct {
	ID          string  `json:"id"`
	SourceFile  string  `json:"source_file"`
	StartTime   float64 `json:"start_time"`
	Duration    float64 `json:"duration"`
	NumChannels int     `json:"n_channels"`
}

// Snippet is a fixed-length multi-channel EEG excerpt. The ranking core
// never inspects the payload; it only relies on ID being stable and
// unique. The remaining fields exist for rendering and for the
// automated oracle's prompt.
type Snippet struct {
	ID           string      `json:"id"`
	Channels     []string    `json:"channels"`
	Data         [][]float64 `json:"data"`
	SamplingRate float64     `json:"sampling_rate"`
	Duration     float64     `json:"duration"`
	SourceFile   string      `json:"source_file"`
	StartTime    float64     `json:"start_time"`
	EndTime      float64     `json:"end_time"`
}

// Summary returns the listing view of the snippet.
func (s Snippet) Summary() SnippetSummary {
	return SnippetSummary{
		ID:          s.ID,
		SourceFile:  s.SourceFile,
		StartTime:   s.StartTime,
		Duration:    s.Duration,
		NumChannels: len(s.Channels),
	}
}
