// Package influxdb writes connectivity metrics to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Three measurements
// are written, each tagged with the device id:
//
//	uplink_link      tag event; fields from, to, up
//	uplink_session   tag event; fields healthy, error
//	uplink_publish   tag topic; fields ok, request_id
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSessionEvent("connected", true, false)
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Asynchronous failures are delivered to the SetOnError callback.
package influxdb
