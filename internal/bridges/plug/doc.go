// Package plug is the core-side client for the smart plug bridge.
//
// The bridge owns the vendor wire protocol. Core talks to it over MQTT
// using the same request/response and command/ack patterns as every other
// Gray Logic bridge:
//
//	┌──────────────┐  request/command   ┌──────────────┐
//	│ feature.     │ ─────────────────► │ Plug Bridge  │ ───► plugs
//	│ Coordinator  │ ◄───────────────── │              │
//	└──────────────┘  response/ack      └──────────────┘
//
// Topics:
//
//	graylogic/request/plug/{request_id}    read_all request
//	graylogic/response/plug/{request_id}   device tree response
//	graylogic/command/plug/{device_id}     set_value command
//	graylogic/ack/plug/{device_id}         command acknowledgement
//
// Client implements feature.DeviceClient. Every call waits at most the
// configured request timeout for its reply.
package plug
