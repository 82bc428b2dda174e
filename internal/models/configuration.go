package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FillMode selects how a text placeholder is filled for each folder.
type FillMode string

const (
	FillEmpty      FillMode = "empty"
	FillLiteral    FillMode = "literal"
	FillDate       FillMode = "date"
	FillImageDate  FillMode = "imageDate"
	FillFolderName FillMode = "folderName"
)

// DateToday is the date value meaning "the day the batch is generated".
const DateToday = "today"

// FillModes lists every fill mode in display order.
var FillModes = []FillMode{FillEmpty, FillLiteral, FillDate, FillImageDate, FillFolderName}

// legacyFillModes maps the labels older settings files stored under "type".
var legacyFillModes = map[string]FillMode{
	"ترك فارغ":     FillEmpty,
	"نص ثابت":      FillLiteral,
	"تاريخ":        FillDate,
	"تاريخ الصورة": FillImageDate,
	"اسم المجلد":   FillFolderName,
}

// ParseFillMode validates a fill mode name.
func ParseFillMode(s string) (FillMode, error) {
	for _, m := range FillModes {
		if string(m) == s {
			return m, nil
		}
	}
	if m, ok := legacyFillModes[s]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown fill mode: %q", s)
}

// ImageSlot configures one image placeholder.
type ImageSlot struct {
	Use   bool `json:"use" msgpack:"use" yaml:"use"`
	Order int  `json:"order" msgpack:"order" yaml:"order"`
}

// TextSlot configures one text placeholder.
// KeepOriginal wins over FillMode and Value when set.
type TextSlot struct {
	FillMode     FillMode `json:"fillMode" msgpack:"fillMode" yaml:"fillMode"`
	Value        *string  `json:"value" msgpack:"value" yaml:"value"`
	KeepOriginal bool     `json:"keepOriginal" msgpack:"keepOriginal" yaml:"keepOriginal"`
}

// UnmarshalJSON accepts both the current shape and the legacy {"type": ...} shape.
func (t *TextSlot) UnmarshalJSON(data []byte) error {
	var raw struct {
		FillMode     *string `json:"fillMode"`
		Type         *string `json:"type"`
		Value        *string `json:"value"`
		KeepOriginal bool    `json:"keepOriginal"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	mode := FillEmpty
	switch {
	case raw.FillMode != nil:
		m, err := ParseFillMode(*raw.FillMode)
		if err != nil {
			return err
		}
		mode = m
	case raw.Type != nil:
		m, err := ParseFillMode(*raw.Type)
		if err != nil {
			return err
		}
		mode = m
	}

	t.FillMode = mode
	t.Value = raw.Value
	t.KeepOriginal = raw.KeepOriginal
	return nil
}

// Active reports whether the slot changes the placeholder at all.
func (s ImageSlot) Active() bool { return s.Use }

// Active reports whether the slot changes or pins the placeholder text.
func (t TextSlot) Active() bool { return t.FillMode != FillEmpty || t.KeepOriginal }

// Configuration is the per-template settings document.
type Configuration struct {
	Images map[string]ImageSlot `json:"images" msgpack:"images" yaml:"images"`
	Texts  map[string]TextSlot  `json:"texts" msgpack:"texts" yaml:"texts"`
}

// NewConfiguration returns an empty configuration with both maps allocated.
func NewConfiguration() *Configuration {
	return &Configuration{
		Images: make(map[string]ImageSlot),
		Texts:  make(map[string]TextSlot),
	}
}

// Clone returns a deep copy.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := NewConfiguration()
	for k, v := range c.Images {
		out.Images[k] = v
	}
	for k, v := range c.Texts {
		if v.Value != nil {
			val := *v.Value
			v.Value = &val
		}
		out.Texts[k] = v
	}
	return out
}

// IsEmpty reports whether the configuration has no slots.
func (c *Configuration) IsEmpty() bool {
	return c == nil || (len(c.Images) == 0 && len(c.Texts) == 0)
}

const (
	imageKeyPrefix = "image_"
	textKeyPrefix  = "text_"
)

// ImageKey returns the slot key of an image placeholder.
func ImageKey(id int) string { return imageKeyPrefix + strconv.Itoa(id) }

// TextKey returns the slot key of a text placeholder.
func TextKey(id int) string { return textKeyPrefix + strconv.Itoa(id) }

// ParseSlotKey extracts the placeholder id from a slot key.
// ok is false for keys that do not end in a number.
func ParseSlotKey(key string) (id int, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(key, imageKeyPrefix):
		rest = strings.TrimPrefix(key, imageKeyPrefix)
	case strings.HasPrefix(key, textKeyPrefix):
		rest = strings.TrimPrefix(key, textKeyPrefix)
	default:
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// StringPtr is a small helper for optional text values.
func StringPtr(s string) *string { return &s }
