package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-entities/internal/bridges/plug"
	"github.com/nerrad567/gray-logic-entities/internal/feature"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/mqtt"
)

// plugRuntime owns the plug bridge client and one coordinator per plug.
type plugRuntime struct {
	client       *plug.Client
	coordinators []*feature.Coordinator
}

// startPlugs starts polling every configured plug. Number controls for a
// plug are created on its first successful refresh, so a plug that is
// offline at startup gains its controls once it answers.
func startPlugs(
	ctx context.Context,
	cfg config.PlugsConfig,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	numbers *feature.Numbers,
	onState func(feature.NumberState),
	log *logging.Logger,
) (*plugRuntime, error) {
	policy, err := feature.ParseBoundsPolicy(cfg.BoundsPolicy)
	if err != nil {
		return nil, err
	}

	client, err := plug.NewClient(plug.Options{
		MQTT:           mqttClient,
		RequestTimeout: cfg.GetRequestTimeout(),
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Start(); err != nil {
		return nil, err
	}

	var dc feature.DeviceClient = client
	if influxClient != nil {
		dc = influxClient.RecordWrites(dc)
	}

	rt := &plugRuntime{client: client}
	for _, dev := range cfg.Devices {
		coord, err := feature.NewCoordinator(feature.CoordinatorConfig{
			Client:   dc,
			DeviceID: dev.ID,
			Interval: cfg.GetPollInterval(),
			Logger:   log,
		})
		if err != nil {
			rt.Stop()
			return nil, fmt.Errorf("plug %s: %w", dev.ID, err)
		}
		if influxClient != nil {
			coord.AddListener(influxClient.FeatureListener())
		}
		attachOnFirstRefresh(coord, numbers, onState, log,
			feature.WithBoundsPolicy(policy),
			feature.WithNumberLogger(log),
		)

		if err := coord.Start(ctx); err != nil {
			rt.Stop()
			return nil, fmt.Errorf("plug %s: %w", dev.ID, err)
		}
		rt.coordinators = append(rt.coordinators, coord)
		log.Info("plug coordinator started", "device_id", dev.ID, "name", dev.Name, "interval", coord.Interval())
	}
	return rt, nil
}

// Stop halts polling and removes the bridge subscriptions.
func (rt *plugRuntime) Stop() {
	for _, c := range rt.coordinators {
		c.Stop()
	}
	rt.client.Stop()
}

// attachOnFirstRefresh registers a listener that creates the device's
// number controls from the first successful snapshot and then removes
// itself.
func attachOnFirstRefresh(
	coord *feature.Coordinator,
	numbers *feature.Numbers,
	onState func(feature.NumberState),
	log *logging.Logger,
	opts ...feature.NumberOption,
) {
	var once sync.Once
	var remove func()
	remove = coord.AddListener(func(u feature.Update) {
		if u.Err != nil {
			return
		}
		once.Do(func() {
			created := attachNumbers(coord, numbers, u.Snapshot, onState, opts...)
			log.Info("plug numbers attached", "device_id", coord.DeviceID(), "count", created)
			remove()
		})
	})
}

// attachNumbers creates a Number for every mutable number feature of snap,
// subscribes it to coord and adds it to numbers.
func attachNumbers(
	coord *feature.Coordinator,
	numbers *feature.Numbers,
	snap feature.DeviceSnapshot,
	onState func(feature.NumberState),
	opts ...feature.NumberOption,
) int {
	created := feature.NumbersForDevice(coord, snap, opts...)
	for _, n := range created {
		if onState != nil {
			n.SetOnChange(onState)
			onState(n.State())
		}
		coord.AddListener(n.HandleUpdate)
	}
	numbers.Add(created...)
	return len(created)
}
