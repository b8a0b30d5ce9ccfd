package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  Intent
	}{
		{"How many devices are up?", CountUp},
		{"how many devices are online right now", CountUp},
		{"HOW MANY ARE UP", CountUp},
		{"What devices are active?", CountUp},
		{"how many are down?", CountDown},
		{"What devices are offline today", CountDown},
		{"how many devices are offline", CountDown},
		{"please list all devices", ListAll},
		{"Show me device names", DeviceNames},
		{"tell me a joke", Unknown},
		{"", Unknown},
		{"how many devices", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// Both phrases are present; the earlier declaration wins regardless of
	// where each occurs in the input.
	assert.Equal(t, CountUp, Classify("list all devices, and how many are up?"))
	assert.Equal(t, CountUp, Classify("how many are up and list all devices"))
	assert.Equal(t, CountDown, Classify("show me device names and how many are down"))
}

func TestClassifyIsTotal(t *testing.T) {
	valid := map[Intent]bool{Unknown: true, CountUp: true, CountDown: true, ListAll: true, DeviceNames: true}
	inputs := []string{"", " ", "ñandú", "\x00\xff", "LIST ALL DEVICES", "how many are up how many are down"}
	for _, in := range inputs {
		assert.True(t, valid[Classify(in)], "input %q", in)
	}
}

func TestEveryPhraseClassifiesToItself(t *testing.T) {
	for i, p := range Phrases() {
		assert.Equal(t, triggers[i].intent, Classify(p), p)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "count_up", CountUp.String())
	assert.Equal(t, "count_down", CountDown.String())
	assert.Equal(t, "list_all", ListAll.String())
	assert.Equal(t, "device_names", DeviceNames.String())
	assert.Equal(t, "unknown", Unknown.String())
	assert.False(t, Unknown.NeedsSweep())
	assert.True(t, ListAll.NeedsSweep())
}
