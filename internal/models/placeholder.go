package models

// PlaceholderKind identifies what a detected template region holds.
type PlaceholderKind string

const (
	KindImage PlaceholderKind = "image"
	KindText  PlaceholderKind = "text"
	KindTitle PlaceholderKind = "title"
)

// Placeholder is a positioned region detected by the analyzer.
// Geometry is expressed as percentages (0-100) of the slide size.
type Placeholder struct {
	ID             int             `json:"id"`
	Kind           PlaceholderKind `json:"kind"`
	Top            float64         `json:"top"`
	Left           float64         `json:"left"`
	Width          float64         `json:"width"`
	Height         float64         `json:"height"`
	CurrentContent string          `json:"currentContent"`
}

// Analysis is the analyzer's answer for one uploaded template.
type Analysis struct {
	ImagePlaceholders []Placeholder  `json:"imagePlaceholders"`
	TextPlaceholders  []Placeholder  `json:"textPlaceholders"`
	TitlePlaceholders []Placeholder  `json:"titlePlaceholders"`
	Statistics        map[string]int `json:"statistics,omitempty"`
}

// All returns every placeholder in detection order: images, texts, then titles.
// Kind is filled in from the list a placeholder came from.
func (a *Analysis) All() []Placeholder {
	if a == nil {
		return nil
	}
	out := make([]Placeholder, 0, a.Total())
	add := func(list []Placeholder, kind PlaceholderKind) {
		for _, p := range list {
			p.Kind = kind
			out = append(out, p)
		}
	}
	add(a.ImagePlaceholders, KindImage)
	add(a.TextPlaceholders, KindText)
	add(a.TitlePlaceholders, KindTitle)
	return out
}

// Total returns the number of detected placeholders of every kind.
func (a *Analysis) Total() int {
	if a == nil {
		return 0
	}
	return len(a.ImagePlaceholders) + len(a.TextPlaceholders) + len(a.TitlePlaceholders)
}

// Find looks up a placeholder by id.
func (a *Analysis) Find(id int) (Placeholder, bool) {
	for _, p := range a.All() {
		if p.ID == id {
			return p, true
		}
	}
	return Placeholder{}, false
}
