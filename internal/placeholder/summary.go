package placeholder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/slidewizard/backend/internal/models"
)

// LineStatus tags a summary line for rendering.
type LineStatus string

const (
	LineHeader   LineStatus = "header"
	LineActive   LineStatus = "active"
	LineInactive LineStatus = "inactive"
	LineInfo     LineStatus = "info"
)

// SummaryLine is one rendered row of the configuration summary. Text holds
// user values verbatim; HTML is the same row made safe for markup.
type SummaryLine struct {
	Section string     `json:"section"`
	Key     string     `json:"key,omitempty"`
	Status  LineStatus `json:"status"`
	Text    string     `json:"text"`
	HTML    string     `json:"html"`
}

// Summary is the read-only projection shown in the configure step and again
// before processing. Both views render Text() of the same Summary.
type Summary struct {
	ActiveImageCount int           `json:"activeImageCount"`
	ActiveTextCount  int           `json:"activeTextCount"`
	TitleCount       int           `json:"titleCount"`
	Lines            []SummaryLine `json:"lines"`
}

// Text renders the summary as plain lines, section rows unindented.
func (s Summary) Text() string {
	var b strings.Builder
	for i, l := range s.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if l.Status != LineHeader {
			b.WriteString("  ")
		}
		b.WriteString(l.Text)
	}
	return b.String()
}

// HTML renders the summary for injection into a page, one row per line.
func (s Summary) HTML() string {
	var b strings.Builder
	for i, l := range s.Lines {
		if i > 0 {
			b.WriteString("<br>\n")
		}
		if l.Status != LineHeader {
			b.WriteString("&nbsp;&nbsp;")
		}
		b.WriteString(l.HTML)
	}
	return b.String()
}

const (
	sectionImages = "images"
	sectionTexts  = "texts"
	sectionTitles = "titles"
)

var (
	summaryPolicy = bluemonday.StrictPolicy()

	fillModeLabels = map[models.FillMode]string{
		models.FillEmpty:      "Leave empty",
		models.FillLiteral:    "Literal text",
		models.FillDate:       "Date",
		models.FillImageDate:  "Image date",
		models.FillFolderName: "Folder name",
	}
)

// RenderSummary projects cfg into summary lines. It has no side effects and
// returns identical output for identical input.
func RenderSummary(cfg *models.Configuration, titleCount int) Summary {
	sum := Summary{TitleCount: titleCount}
	if cfg == nil {
		cfg = models.NewConfiguration()
	}

	sum.Lines = append(sum.Lines, SummaryLine{Section: sectionImages, Status: LineHeader, Text: "Images:"})
	imageKeys := sortedKeys(cfg.Images)
	if len(imageKeys) == 0 {
		sum.Lines = append(sum.Lines, SummaryLine{Section: sectionImages, Status: LineInfo, Text: "No image placeholders"})
	}
	for _, key := range imageKeys {
		slot := cfg.Images[key]
		line := SummaryLine{Section: sectionImages, Key: key}
		if slot.Active() {
			sum.ActiveImageCount++
			line.Status = LineActive
			line.Text = fmt.Sprintf("✅ Image %s: replaced by image #%d from each folder", slotLabel(key), slot.Order)
		} else {
			line.Status = LineInactive
			line.Text = fmt.Sprintf("⏭️ Image %s: will not be replaced", slotLabel(key))
		}
		sum.Lines = append(sum.Lines, line)
	}

	sum.Lines = append(sum.Lines, SummaryLine{Section: sectionTexts, Status: LineHeader, Text: "Texts:"})
	textKeys := sortedKeys(cfg.Texts)
	if len(textKeys) == 0 {
		sum.Lines = append(sum.Lines, SummaryLine{Section: sectionTexts, Status: LineInfo, Text: "No text placeholders"})
	}
	for _, key := range textKeys {
		slot := cfg.Texts[key]
		line := SummaryLine{Section: sectionTexts, Key: key}
		switch {
		case !slot.Active():
			line.Status = LineInactive
			line.Text = fmt.Sprintf("⏭️ Text %s: left empty", slotLabel(key))
		case slot.FillMode == models.FillEmpty:
			sum.ActiveTextCount++
			line.Status = LineActive
			line.Text = fmt.Sprintf("✅ Text %s: original text kept", slotLabel(key))
		default:
			sum.ActiveTextCount++
			line.Status = LineActive
			line.Text = fmt.Sprintf("✅ Text %s: %s: %s", slotLabel(key), fillModeLabels[slot.FillMode], describeValue(slot))
			if slot.KeepOriginal {
				line.Text += " (original text kept)"
			}
		}
		sum.Lines = append(sum.Lines, line)
	}

	if titleCount > 0 {
		sum.Lines = append(sum.Lines,
			SummaryLine{Section: sectionTitles, Status: LineHeader, Text: "Titles:"},
			SummaryLine{Section: sectionTitles, Status: LineInfo, Text: fmt.Sprintf("ℹ️ %d title(s) replaced by the folder name", titleCount)},
		)
	}

	for i := range sum.Lines {
		sum.Lines[i].HTML = summaryPolicy.Sanitize(sum.Lines[i].Text)
	}
	return sum
}

func describeValue(slot models.TextSlot) string {
	switch slot.FillMode {
	case models.FillLiteral:
		if slot.Value == nil || *slot.Value == "" {
			return "not set"
		}
		return *slot.Value
	case models.FillDate:
		if slot.Value == nil || *slot.Value == models.DateToday {
			return "today's date"
		}
		return *slot.Value
	case models.FillImageDate:
		return "date of the first image in the folder"
	case models.FillFolderName:
		return "name of the folder"
	}
	return ""
}

func slotLabel(key string) string {
	if id, ok := models.ParseSlotKey(key); ok {
		return strconv.Itoa(id)
	}
	return key
}

// sortedKeys orders slot keys by numeric id; keys without one sort last by name.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aok := models.ParseSlotKey(keys[i])
		b, bok := models.ParseSlotKey(keys[j])
		switch {
		case aok && bok:
			if a != b {
				return a < b
			}
			return keys[i] < keys[j]
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
