package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Equal compares a reported attribute value with an expected one.
// Booleans, the numbers 1 and 0 and the strings "1", "0", "true" and
// "false" are compared as booleans; any other pair is compared by its string
// form.
func Equal(a, b any) bool {
	ab, aok := asBool(a)
	bb, bok := asBool(b)
	if aok && bok {
		return ab == bb
	}
	return stringify(a) == stringify(b)
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		return boolString(x)
	case json.Number:
		return boolString(x.String())
	case float64:
		return boolNumber(x)
	case float32:
		return boolNumber(float64(x))
	case int:
		return boolNumber(float64(x))
	case int64:
		return boolNumber(float64(x))
	case int32:
		return boolNumber(float64(x))
	case uint:
		return boolNumber(float64(x))
	case uint64:
		return boolNumber(float64(x))
	default:
		return false, false
	}
}

func boolNumber(f float64) (bool, bool) {
	switch f {
	case 1:
		return true, true
	case 0:
		return false, true
	}
	return false, false
}

func boolString(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, true
	case "0", "false":
		return false, true
	}
	return false, false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
