package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAlertRuleValidate(t *testing.T) {
	lo, hi := 10.0, 20.0
	cases := []struct {
		name string
		rule AlertRule
		ok   bool
	}{
		{"above", AlertRule{ID: "r", DeviceID: "d", SensorKey: "t", Condition: ConditionAbove}, true},
		{"between", AlertRule{ID: "r", DeviceID: "d", SensorKey: "t", Condition: ConditionBetween, Min: &lo, Max: &hi}, true},
		{"between missing bounds", AlertRule{ID: "r", DeviceID: "d", SensorKey: "t", Condition: ConditionBetween}, false},
		{"inverted bounds", AlertRule{ID: "r", DeviceID: "d", SensorKey: "t", Condition: ConditionOutside, Min: &hi, Max: &lo}, false},
		{"unknown condition", AlertRule{ID: "r", DeviceID: "d", SensorKey: "t", Condition: "near"}, false},
		{"missing sensor", AlertRule{ID: "r", DeviceID: "d", Condition: ConditionBelow}, false},
	}
	for _, c := range cases {
		err := c.rule.Validate()
		if c.ok {
			assert.NoError(t, err, c.name)
		} else {
			assert.Error(t, err, c.name)
		}
	}
}

func TestAlertRuleCooldown(t *testing.T) {
	r := AlertRule{CooldownSeconds: 300}
	assert.Equal(t, 5*time.Minute, r.Cooldown())
}

func TestDeviceReady(t *testing.T) {
	assert.True(t, Device{Status: DeviceActive}.Ready())
	assert.True(t, Device{Status: DeviceReady}.Ready())
	assert.False(t, Device{Status: DeviceMaintenance}.Ready())
	assert.False(t, Device{ID: "d"}.Monitored())
	assert.Equal(t, "d", Device{ID: "d"}.DisplayName())
}
