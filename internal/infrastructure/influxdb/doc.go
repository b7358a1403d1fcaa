// Package influxdb records routine run telemetry in InfluxDB v2.
//
// Telemetry is optional. When influxdb.enabled is false, Connect returns
// ErrDisabled and the service runs without it.
//
// # Measurements
//
//	routine_run     tags: routine_id, trigger    fields: duration_ms, actions, failures, ok
//	routine_action  tags: routine_id, device_id, kind    fields: ok
//
// Writes are non-blocking and batched. Failures surface through SetOnError.
package influxdb
