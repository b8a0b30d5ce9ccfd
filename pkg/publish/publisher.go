// Package publish exports completed scans to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/spindleai/spindle/pkg/sweep"
)

// Publisher exports one completed scan.
type Publisher interface {
	PublishScan(ctx context.Context, result sweep.Result) error
}

// ScanEvent is the JSON payload of an exported scan.
type ScanEvent struct {
	ScanID    string        `json:"scan_id"`
	Timestamp time.Time     `json:"timestamp"`
	Devices   []DeviceEvent `json:"devices"`
	Failed    []string      `json:"failed_ranges,omitempty"`
}

// DeviceEvent is one record of a ScanEvent.
type DeviceEvent struct {
	Address  string `json:"ip"`
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
	Range    string `json:"subnet"`
}

// NewScanEvent converts a sweep result into its export payload.
func NewScanEvent(result sweep.Result) ScanEvent {
	ev := ScanEvent{
		ScanID:    result.ScanID,
		Timestamp: result.Timestamp.UTC(),
		Devices:   make([]DeviceEvent, 0, len(result.Records)),
	}
	for _, r := range result.Records {
		ev.Devices = append(ev.Devices, DeviceEvent{
			Address:  r.Address,
			Hostname: r.Hostname,
			Status:   r.Status,
			Range:    r.RangeLabel,
		})
	}
	for _, f := range result.Failures {
		ev.Failed = append(ev.Failed, f.Range)
	}
	return ev
}

// PubSubPublisher implements Publisher using a Pub/Sub topic.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher constructs a publisher for the given topic. If the topic
// is nil, publishes are treated as no-ops.
func NewPubSubPublisher(topic *pubsub.Topic) *PubSubPublisher {
	return &PubSubPublisher{topic: topic}
}

// PublishScan sends the scan to the topic and waits for the server ack.
func (p *PubSubPublisher) PublishScan(ctx context.Context, result sweep.Result) error {
	if p.topic == nil {
		return nil
	}
	data, err := json.Marshal(NewScanEvent(result))
	if err != nil {
		return fmt.Errorf("marshal scan event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"scan_id": result.ScanID,
			"devices": strconv.Itoa(len(result.Records)),
			"partial": strconv.FormatBool(result.Partial()),
		},
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish scan %s: %w", result.ScanID, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}

// NoopPublisher is used when no topic is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishScan(ctx context.Context, result sweep.Result) error {
	return nil
}
