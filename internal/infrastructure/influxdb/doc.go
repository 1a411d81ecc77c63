// Package influxdb records smart plug telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	device_metrics   one point per numeric feature on every coordinator
//	                 refresh, tagged device_id and measurement
//	feature_writes   one point per number write sent to a plug, tagged
//	                 device_id and feature, with value/success/error fields
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	coordinator.AddListener(client.FeatureListener())
//	dc = client.RecordWrites(dc)
//
// Writes go through the non-blocking batched write API (batch_size,
// flush_interval); failures are reported to SetOnError.
package influxdb
