package models

import "io"

// Image ordering options understood by the generator.
const (
	ImageOrderAlphabetical = "alphabetical"
	ImageOrderRandom       = "random"
)

// GenerateOptions tunes one batch generation run.
type GenerateOptions struct {
	ImageOrder       string `json:"imageOrder"`
	SkipEmptyFolders bool   `json:"skipEmptyFolders"`
}

// DefaultGenerateOptions returns the options used when the browser sends none.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{ImageOrder: ImageOrderAlphabetical, SkipEmptyFolders: true}
}

// GenerateRequest is one batch generation call.
type GenerateRequest struct {
	Config    *Configuration
	BatchName string
	Batch     io.Reader
	Options   GenerateOptions
}

// DetailType classifies a per-folder processing message.
type DetailType string

const (
	DetailSuccess DetailType = "success"
	DetailWarning DetailType = "warning"
	DetailError   DetailType = "error"
	DetailInfo    DetailType = "info"
)

// Detail is one line of the generator's processing log.
type Detail struct {
	Type    DetailType `json:"type"`
	Message string     `json:"message"`
}

// GenerateStats summarizes a finished run.
type GenerateStats struct {
	CreatedSlides    int `json:"createdSlides"`
	ProcessedFolders int `json:"processedFolders"`
	TotalImages      int `json:"totalImages"`
}

// SlidePreview is one rendered result slide shown in the slideshow.
type SlidePreview struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Caption  string `json:"caption,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// GenerateResult is the generator's answer for a successful run.
type GenerateResult struct {
	OutputArtifactID string         `json:"outputArtifactId"`
	Stats            GenerateStats  `json:"stats"`
	Details          []Detail       `json:"details"`
	Slides           []SlidePreview `json:"slides,omitempty"`
}

// Artifact is a generated output file streamed from the generator. The
// caller closes Body.
type Artifact struct {
	Name        string
	ContentType string
	// Size is -1 when the generator did not send a length.
	Size int64
	Body io.ReadCloser
}

// SubmitResult is the session settings endpoint's answer.
type SubmitResult struct {
	RequestID string `json:"requestId,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
}

// ShowDetailsNeeded reports whether the details list has anything the user must look at.
func ShowDetailsNeeded(details []Detail) bool {
	for _, d := range details {
		if d.Type == DetailWarning || d.Type == DetailError {
			return true
		}
	}
	return false
}
