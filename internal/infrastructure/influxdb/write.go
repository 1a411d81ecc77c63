package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-entities/internal/feature"
)

// Measurement names.
const (
	measurementDeviceMetrics = "device_metrics"
	measurementFeatureWrites = "feature_writes"
)

// WriteFeatureSnapshot records every numeric feature of snap and its
// children as device_metrics points stamped with the fetch time.
func (c *Client) WriteFeatureSnapshot(snap feature.DeviceSnapshot) {
	for _, p := range featurePoints(snap) {
		c.writePoint(p)
	}
}

// FeatureListener returns a coordinator listener that records each
// successful refresh.
func (c *Client) FeatureListener() func(feature.Update) {
	return func(u feature.Update) {
		if u.Err != nil {
			return
		}
		c.WriteFeatureSnapshot(u.Snapshot)
	}
}

// WriteFeatureWrite records the outcome of a number write.
func (c *Client) WriteFeatureWrite(deviceID, key string, value int, writeErr error) {
	c.writePoint(featureWritePoint(deviceID, key, value, writeErr, time.Now()))
}

// RecordWrites wraps dc so every SetValue outcome is written as a
// feature_writes point.
func (c *Client) RecordWrites(dc feature.DeviceClient) feature.DeviceClient {
	return &recordingClient{DeviceClient: dc, influx: c}
}

type recordingClient struct {
	feature.DeviceClient
	influx *Client
}

func (r *recordingClient) SetValue(ctx context.Context, req feature.SetValueRequest) error {
	err := r.DeviceClient.SetValue(ctx, req)
	deviceID := req.DeviceID
	if req.ChildID != "" {
		deviceID = req.ChildID
	}
	r.influx.WriteFeatureWrite(deviceID, req.Key, req.Value, err)
	return err
}

func deviceMetricPoint(deviceID, measurement string, value float64, at time.Time) *write.Point {
	return write.NewPoint(
		measurementDeviceMetrics,
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]any{
			"value": value,
		},
		at,
	)
}

// featurePoints converts the numeric features of snap into points.
// Non-numeric values (switch states, choices) are skipped.
func featurePoints(snap feature.DeviceSnapshot) []*write.Point {
	at := snap.FetchedAt
	if at.IsZero() {
		at = time.Now()
	}

	var points []*write.Point
	snap.Walk(func(dev feature.DeviceSnapshot) {
		for key, f := range dev.Features {
			v, ok := f.Number()
			if !ok {
				continue
			}
			points = append(points, deviceMetricPoint(dev.ID, key, v, at))
		}
	})
	return points
}

func featureWritePoint(deviceID, key string, value int, writeErr error, at time.Time) *write.Point {
	fields := map[string]any{
		"value":   value,
		"success": writeErr == nil,
	}
	if writeErr != nil {
		fields["error"] = writeErr.Error()
	}
	return write.NewPoint(
		measurementFeatureWrites,
		map[string]string{
			"device_id": deviceID,
			"feature":   key,
		},
		fields,
		at,
	)
}
