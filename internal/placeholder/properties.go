package placeholder

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/slidewizard/backend/internal/models"
)

// ImageProperty names an editable field of an ImageSlot.
type ImageProperty string

const (
	ImageUse   ImageProperty = "use"
	ImageOrder ImageProperty = "order"
)

// TextProperty names an editable field of a TextSlot.
type TextProperty string

const (
	TextFillMode     TextProperty = "fillMode"
	TextValue        TextProperty = "value"
	TextKeepOriginal TextProperty = "keepOriginal"
)

const dateLayout = "2006-01-02"

func applyImageProperty(slot *models.ImageSlot, prop ImageProperty, value any) error {
	switch prop {
	case ImageUse:
		b, err := toBool(value)
		if err != nil {
			return fmt.Errorf("use: %w", err)
		}
		slot.Use = b
	case ImageOrder:
		n, err := ToInt(value)
		if err != nil {
			return fmt.Errorf("order: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("%w: got %d", ErrInvalidOrder, n)
		}
		slot.Order = n
	default:
		return fmt.Errorf("%w: image %q", ErrUnknownProperty, prop)
	}
	return nil
}

func applyTextProperty(slot *models.TextSlot, prop TextProperty, value any) error {
	switch prop {
	case TextFillMode:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: fill mode must be a string, got %T", ErrInvalidFillMode, value)
		}
		mode, err := models.ParseFillMode(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFillMode, err)
		}
		slot.FillMode = mode
	case TextValue:
		v, err := toOptionalString(value)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		if v != nil && slot.FillMode == models.FillDate {
			if err := ValidateDate(*v); err != nil {
				return err
			}
		}
		slot.Value = v
	case TextKeepOriginal:
		b, err := toBool(value)
		if err != nil {
			return fmt.Errorf("keepOriginal: %w", err)
		}
		slot.KeepOriginal = b
	default:
		return fmt.Errorf("%w: text %q", ErrUnknownProperty, prop)
	}
	return nil
}

// ValidateDate accepts the "today" sentinel or an ISO calendar date.
func ValidateDate(v string) error {
	if v == models.DateToday {
		return nil
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	return nil
}

// FormatDate renders t the way date values are stored.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: expected boolean, got %T", ErrInvalidValue, value)
	}
}

// ToInt converts a decoded control value to an integer. Strings must hold a
// whole decimal number and floats must be integral and within exact range.
func ToInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > maxExactFloat {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v.String())
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", ErrInvalidValue, value)
	}
}

// maxExactFloat is the largest magnitude at which every integer is representable.
const maxExactFloat = 1 << 53

func toOptionalString(value any) (*string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	case *string:
		if v == nil {
			return nil, nil
		}
		s := *v
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, value)
	}
}
