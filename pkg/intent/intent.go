// Package intent maps free-text questions onto the fixed set of questions the
// assistant can answer from a network sweep.
package intent

import "strings"

// Intent is the classified purpose of a user message.
type Intent int

const (
	Unknown Intent = iota
	CountUp
	CountDown
	ListAll
	DeviceNames
)

func (i Intent) String() string {
	switch i {
	case CountUp:
		return "count_up"
	case CountDown:
		return "count_down"
	case ListAll:
		return "list_all"
	case DeviceNames:
		return "device_names"
	default:
		return "unknown"
	}
}

// NeedsSweep reports whether answering requires a fresh network sweep.
func (i Intent) NeedsSweep() bool {
	return i != Unknown
}

type trigger struct {
	phrase string
	intent Intent
}

// triggers is evaluated top to bottom and the first contained phrase wins, so
// reordering entries changes behavior.
var triggers = []trigger{
	{"how many devices are online", CountUp},
	{"how many devices are up", CountUp},
	{"how many are up", CountUp},
	{"what devices are active", CountUp},
	{"how many devices are offline", CountDown},
	{"how many devices are down", CountDown},
	{"how many are down", CountDown},
	{"what devices are offline", CountDown},
	{"list all devices", ListAll},
	{"show me device names", DeviceNames},
}

// Classify returns the intent of the first trigger phrase contained in text,
// compared case-insensitively, or Unknown.
func Classify(text string) Intent {
	lowered := strings.ToLower(text)
	for _, t := range triggers {
		if strings.Contains(lowered, t.phrase) {
			return t.intent
		}
	}
	return Unknown
}

// Phrases lists the trigger phrases in priority order.
func Phrases() []string {
	out := make([]string, len(triggers))
	for i, t := range triggers {
		out[i] = t.phrase
	}
	return out
}
