package alerting

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/kilianp07/agrolink/core/model"
)

// ErrRuleEvaluation reports a rule that cannot be evaluated. It never
// stops the evaluation of the other rules.
var ErrRuleEvaluation = errors.New("rule evaluation failed")

const equalTolerance = 1e-9

// Evaluate reports whether value satisfies the rule condition.
func Evaluate(r model.AlertRule, value float64) (bool, error) {
	switch r.Condition {
	case model.ConditionAbove:
		return value > r.Threshold, nil
	case model.ConditionBelow:
		return value < r.Threshold, nil
	case model.ConditionEqual:
		return math.Abs(value-r.Threshold) <= equalTolerance, nil
	case model.ConditionBetween, model.ConditionOutside:
		if r.Min == nil || r.Max == nil {
			return false, fmt.Errorf("%w: rule %s: %s requires min and max", ErrRuleEvaluation, r.ID, r.Condition)
		}
		inside := value >= *r.Min && value <= *r.Max
		if r.Condition == model.ConditionBetween {
			return inside, nil
		}
		return !inside, nil
	default:
		return false, fmt.Errorf("%w: rule %s: unknown condition %q", ErrRuleEvaluation, r.ID, r.Condition)
	}
}

// Message describes a matched rule, e.g.
// "temperature is 35.2, above the threshold of 30".
func Message(r model.AlertRule, value float64) string {
	v := formatNumber(value)
	switch r.Condition {
	case model.ConditionAbove:
		return fmt.Sprintf("%s is %s, above the threshold of %s", r.SensorKey, v, formatNumber(r.Threshold))
	case model.ConditionBelow:
		return fmt.Sprintf("%s is %s, below the threshold of %s", r.SensorKey, v, formatNumber(r.Threshold))
	case model.ConditionEqual:
		return fmt.Sprintf("%s is %s, equal to the threshold of %s", r.SensorKey, v, formatNumber(r.Threshold))
	case model.ConditionBetween:
		return fmt.Sprintf("%s is %s, within the range %s to %s", r.SensorKey, v, bound(r.Min), bound(r.Max))
	case model.ConditionOutside:
		return fmt.Sprintf("%s is %s, outside the range %s to %s", r.SensorKey, v, bound(r.Min), bound(r.Max))
	default:
		return fmt.Sprintf("%s is %s", r.SensorKey, v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func bound(p *float64) string {
	if p == nil {
		return "?"
	}
	return formatNumber(*p)
}
