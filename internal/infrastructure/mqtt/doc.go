// Package mqtt connects the entity service to the Gray Logic MQTT bus.
//
// Bridges (the smart plug bridge among them) answer requests and commands
// on graylogic/{category}/{protocol}/{address} topics. This service also
// publishes its own state under graylogic/core:
//
//	graylogic/core/entity_store/changed        entity store change events
//	graylogic/core/number/{unique_id}/state    retained number state
//	graylogic/system/status                    retained online/offline status
//
// Client wraps paho.mqtt.golang. It reconnects with backoff, restores
// subscriptions after a reconnect, registers a Last Will so an unexpected
// exit shows up as offline, and recovers panics in message handlers.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.CoreNumberState(id), state, true)
package mqtt
