package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/slidewizard/backend/internal/models"
)

// ErrMalformedSettings is returned for any settings document that is not a
// JSON object carrying both an "images" and a "texts" object.
var ErrMalformedSettings = errors.New("malformed settings file")

const settingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["images", "texts"],
  "properties": {
    "images": {
      "type": "object",
      "additionalProperties": { "type": "object" }
    },
    "texts": {
      "type": "object",
      "additionalProperties": { "type": "object" }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(settingsSchema)

// Decode validates the document shape and parses it. Slot contents are
// accepted as-is apart from unknown fill modes.
func Decode(data []byte) (*models.Configuration, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedSettings)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSettings, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedSettings, strings.Join(msgs, "; "))
	}

	cfg := models.NewConfiguration()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSettings, err)
	}
	if cfg.Images == nil {
		cfg.Images = make(map[string]models.ImageSlot)
	}
	if cfg.Texts == nil {
		cfg.Texts = make(map[string]models.TextSlot)
	}
	return cfg, nil
}
