package command

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Direction is the three-way command of a bidirectional motor. The numeric
// values are the ones the firmware expects on the wire.
type Direction int

const (
	Stop    Direction = 0
	Forward Direction = 1
	Reverse Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Stop:
		return "stop"
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Flags returns the forward and reverse flags the motor reports once the
// direction is applied.
func (d Direction) Flags() (fw, re bool) {
	switch d {
	case Forward:
		return true, false
	case Reverse:
		return false, true
	default:
		return false, false
	}
}

// ParseDirection accepts 0, 1 or 2 as any numeric type or numeric string.
func ParseDirection(v any) (Direction, error) {
	var n float64
	switch x := v.(type) {
	case int:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case float64:
		n = x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: motor direction %q", ErrInvalidParams, x)
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: motor direction %q", ErrInvalidParams, x)
		}
		n = f
	default:
		return 0, fmt.Errorf("%w: motor direction %v", ErrInvalidParams, v)
	}
	if n != math.Trunc(n) || n < 0 || n > 2 {
		return 0, fmt.Errorf("%w: motor direction %v out of range", ErrInvalidParams, v)
	}
	return Direction(n), nil
}
