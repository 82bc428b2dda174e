package binder

import (
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/placeholder"
)

// Control names an input shown on both surfaces.
type Control string

const (
	ControlUse          Control = "use"
	ControlOrder        Control = "order"
	ControlFillMode     Control = "fillMode"
	ControlLiteral      Control = "literal"
	ControlDateType     Control = "dateType"
	ControlDateValue    Control = "dateValue"
	ControlKeepOriginal Control = "keepOriginal"
)

// DateType is the state of the today/custom radio pair.
type DateType string

const (
	DateTypeToday  DateType = "today"
	DateTypeCustom DateType = "custom"
)

// Order input range enforced by the surfaces.
const (
	MinOrder = 1
	MaxOrder = 20
)

// ImageControls is what either surface shows for an image slot.
type ImageControls struct {
	Use          bool `json:"use"`
	Order        int  `json:"order"`
	OrderEnabled bool `json:"orderEnabled"`
}

// TextControls is what either surface shows for a text slot, including
// which groups are visible.
type TextControls struct {
	FillMode     models.FillMode `json:"fillMode"`
	Literal      string          `json:"literal"`
	DateType     DateType        `json:"dateType"`
	DateValue    string          `json:"dateValue"`
	KeepOriginal bool            `json:"keepOriginal"`

	ShowLiteral      bool `json:"showLiteral"`
	ShowDate         bool `json:"showDate"`
	ShowCustomDate   bool `json:"showCustomDate"`
	ShowKeepOriginal bool `json:"showKeepOriginal"`
}

func imageControls(slot models.ImageSlot) *ImageControls {
	return &ImageControls{
		Use:          slot.Use,
		Order:        slot.Order,
		OrderEnabled: slot.Use,
	}
}

func textControls(slot models.TextSlot) *TextControls {
	c := &TextControls{
		FillMode:     slot.FillMode,
		KeepOriginal: slot.KeepOriginal,
		DateType:     DateTypeToday,
	}

	if slot.Value != nil {
		c.Literal = *slot.Value
		if *slot.Value != models.DateToday {
			c.DateType = DateTypeCustom
			if placeholder.ValidateDate(*slot.Value) == nil {
				c.DateValue = *slot.Value
			}
		}
	}

	c.ShowLiteral = slot.FillMode == models.FillLiteral
	c.ShowDate = slot.FillMode == models.FillDate
	c.ShowCustomDate = c.ShowDate && c.DateType == DateTypeCustom
	c.ShowKeepOriginal = slot.FillMode != models.FillEmpty
	return c
}

func clampOrder(n int) int {
	if n < MinOrder {
		return MinOrder
	}
	if n > MaxOrder {
		return MaxOrder
	}
	return n
}
