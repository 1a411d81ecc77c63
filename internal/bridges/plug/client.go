package plug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-entities/internal/feature"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/mqtt"
)

// DefaultRequestTimeout bounds every request and command.
const DefaultRequestTimeout = 5 * time.Second

// MQTTClient is the subset of the MQTT client the plug client uses.
// Satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Client.
type Options struct {
	MQTT MQTTClient

	// RequestTimeout bounds how long Fetch and SetValue wait for the
	// bridge. Default: 5 seconds.
	RequestTimeout time.Duration

	Logger Logger
}

// Client talks to the plug bridge over MQTT and implements
// feature.DeviceClient.
type Client struct {
	mqtt    MQTTClient
	timeout time.Duration
	logger  Logger
	newID   func() string

	mu       sync.Mutex
	started  bool
	requests map[string]chan ResponseMessage
	commands map[string]chan AckMessage
}

var _ feature.DeviceClient = (*Client)(nil)

// NewClient creates a client. Call Start before use.
func NewClient(opts Options) (*Client, error) {
	if opts.MQTT == nil {
		return nil, errors.New("plug: MQTT client is required")
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		mqtt:     opts.MQTT,
		timeout:  timeout,
		logger:   logger,
		newID:    uuid.NewString,
		requests: make(map[string]chan ResponseMessage),
		commands: make(map[string]chan AckMessage),
	}, nil
}

func responseSubscribeTopic() string {
	return mqtt.Topics{}.BridgeResponse(Protocol, "#")
}

func ackSubscribeTopic() string {
	return mqtt.Topics{}.BridgeAck(Protocol, "#")
}

// Start subscribes to response and acknowledgement topics.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.mqtt.Subscribe(responseSubscribeTopic(), 1, c.handleResponse); err != nil {
		return fmt.Errorf("subscribing to plug responses: %w", err)
	}
	if err := c.mqtt.Subscribe(ackSubscribeTopic(), 1, c.handleAck); err != nil {
		_ = c.mqtt.Unsubscribe(responseSubscribeTopic()) //nolint:errcheck // best-effort rollback
		return fmt.Errorf("subscribing to plug acks: %w", err)
	}
	c.started = true
	return nil
}

// Stop removes the subscriptions. Calls waiting for a reply time out.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	for _, topic := range []string{responseSubscribeTopic(), ackSubscribeTopic()} {
		if err := c.mqtt.Unsubscribe(topic); err != nil {
			c.logger.Warn("plug unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

// Fetch asks the bridge for the full feature tree of deviceID.
func (c *Client) Fetch(ctx context.Context, deviceID string) (feature.DeviceSnapshot, error) {
	id := c.newID()
	ch := make(chan ResponseMessage, 1)
	if err := c.register(func() { c.requests[id] = ch }); err != nil {
		return feature.DeviceSnapshot{}, err
	}
	defer c.unregister(func() { delete(c.requests, id) })

	req := RequestMessage{
		RequestID: id,
		Timestamp: time.Now().UTC(),
		Action:    ActionReadAll,
		DeviceID:  deviceID,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return feature.DeviceSnapshot{}, fmt.Errorf("marshal request: %w", err)
	}
	if err := c.mqtt.Publish(mqtt.Topics{}.BridgeRequest(Protocol, id), payload, 1, false); err != nil {
		return feature.DeviceSnapshot{}, fmt.Errorf("publishing read_all for %s: %w", deviceID, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.Success {
			return feature.DeviceSnapshot{}, responseError(resp)
		}
		device, err := decodeDevice(resp.Data)
		if err != nil {
			return feature.DeviceSnapshot{}, err
		}
		return device.Snapshot(time.Now()), nil
	case <-timer.C:
		return feature.DeviceSnapshot{}, fmt.Errorf("%w: read_all %s after %v", ErrTimeout, deviceID, c.timeout)
	case <-ctx.Done():
		return feature.DeviceSnapshot{}, ctx.Err()
	}
}

// SetValue sends a set_value command and waits for it to be accepted.
// Queued acknowledgements keep the call waiting.
func (c *Client) SetValue(ctx context.Context, req feature.SetValueRequest) error {
	id := c.newID()
	ch := make(chan AckMessage, 4)
	if err := c.register(func() { c.commands[id] = ch }); err != nil {
		return err
	}
	defer c.unregister(func() { delete(c.commands, id) })

	params := map[string]any{"key": req.Key, "value": req.Value}
	if req.ChildID != "" {
		params["child_id"] = req.ChildID
	}
	cmd := CommandMessage{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		DeviceID:   req.DeviceID,
		Command:    CommandSetValue,
		Parameters: params,
		Source:     "core",
	}
	payload, err := json.Marshal(&cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if err := c.mqtt.Publish(mqtt.Topics{}.BridgeCommand(Protocol, req.DeviceID), payload, 1, false); err != nil {
		return fmt.Errorf("publishing set_value for %s: %w", req.DeviceID, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-ch:
			switch ack.Status {
			case AckAccepted:
				return nil
			case AckQueued:
				continue
			default:
				return ackError(ack)
			}
		case <-timer.C:
			return fmt.Errorf("%w: set_value %s/%s after %v", ErrTimeout, req.DeviceID, req.Key, c.timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) register(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return ErrNotStarted
	}
	fn()
	return nil
}

func (c *Client) unregister(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}

func (c *Client) handleResponse(topic string, payload []byte) error {
	var resp ResponseMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.RequestID == "" {
		resp.RequestID = topic[strings.LastIndex(topic, "/")+1:]
	}

	c.mu.Lock()
	ch, ok := c.requests[resp.RequestID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("plug response without pending request", "request_id", resp.RequestID)
		return nil
	}
	select {
	case ch <- resp:
	default:
	}
	return nil
}

func (c *Client) handleAck(_ string, payload []byte) error {
	var ack AckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	c.mu.Lock()
	ch, ok := c.commands[ack.CommandID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("plug ack without pending command", "command_id", ack.CommandID)
		return nil
	}
	select {
	case ch <- ack:
	default:
		c.logger.Warn("plug ack dropped", "command_id", ack.CommandID, "status", ack.Status)
	}
	return nil
}

func responseError(resp ResponseMessage) error {
	if resp.Error == nil {
		return ErrRequestFailed
	}
	return fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Error.Code, resp.Error.Message)
}

func ackError(ack AckMessage) error {
	if ack.Status == AckTimeout {
		return fmt.Errorf("%w: device %s timed out", ErrCommandFailed, ack.DeviceID)
	}
	if ack.Error == nil {
		return fmt.Errorf("%w: status %s", ErrCommandFailed, ack.Status)
	}
	return fmt.Errorf("%w: %s: %s", ErrCommandFailed, ack.Error.Code, ack.Error.Message)
}
