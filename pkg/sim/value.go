package sim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTypeCoercion is returned when a script value can't be used as a number.
var ErrTypeCoercion = errors.New("value is not a number")

// ToString returns the script string form of v: strings as is, numbers in
// the shortest decimal form, objects as their identifiers, nil as "".
func ToString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *Object:
		return strconv.FormatUint(uint64(v.ID()), 10)
	default:
		return fmt.Sprint(v)
	}
}

// ToNumber converts script value to a number. Strings must be valid decimal
// numbers (surrounding spaces are allowed), an empty string is not a number.
// Objects are converted to their identifiers.
func ToNumber(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrTypeCoercion, v)
		}
		return f, nil
	case *Object:
		return float64(v.ID()), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrTypeCoercion, v)
	}
}
