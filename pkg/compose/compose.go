// Package compose renders sweep results as chat replies.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/spindleai/spindle/pkg/device"
	"github.com/spindleai/spindle/pkg/intent"
)

// NoHostnamesMessage is returned for device_names when no host resolved.
const NoHostnamesMessage = "No hostnames found."

// UnsupportedMessage is returned for intents that are not answered from a
// sweep.
const UnsupportedMessage = "I can't answer that from a network scan."

// Compose builds the reply for in over records observed at ts. It performs no
// I/O and accepts an empty record set.
func Compose(in intent.Intent, records []device.Record, ts time.Time) string {
	stamp := ts.Format(device.TimestampLayout)

	switch in {
	case intent.CountUp:
		return fmt.Sprintf("%d devices are online as of %s.", countStatus(records, device.StatusUp), stamp)
	case intent.CountDown:
		return fmt.Sprintf("%d devices are offline as of %s.", countStatus(records, device.StatusDown), stamp)
	case intent.ListAll:
		if len(records) == 0 {
			return fmt.Sprintf("No devices found as of %s.", stamp)
		}
		lines := make([]string, len(records))
		for i, r := range records {
			lines[i] = fmt.Sprintf("%s (%s) in %s is %s", r.Hostname, r.Address, r.RangeLabel, r.Status)
		}
		return fmt.Sprintf("Devices as of %s:\n%s", stamp, strings.Join(lines, "\n"))
	case intent.DeviceNames:
		var names []string
		for _, r := range records {
			if r.HasHostname() {
				names = append(names, r.Hostname)
			}
		}
		if len(names) == 0 {
			return NoHostnamesMessage
		}
		return fmt.Sprintf("Device names as of %s:\n%s", stamp, strings.Join(names, "\n"))
	default:
		return UnsupportedMessage
	}
}

func countStatus(records []device.Record, status string) int {
	n := 0
	for _, r := range records {
		if r.HasStatus(status) {
			n++
		}
	}
	return n
}
