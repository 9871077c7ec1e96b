package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/display"
	"github.com/ledfx/ledfx-core/internal/infrastructure/mqtt"
)

// inboundQoS is used for every subscription. Frames are superseded by
// the next one, so at-most-once is enough.
const inboundQoS = 0

// Publisher sends retained JSON messages.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Subscriber registers topic handlers.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Displays looks up displays by id and queues frames for them.
// *display.Registry satisfies it.
type Displays interface {
	Get(id string) (*display.Display, error)
	Submit(id string, frame device.Frame) error
}

// VolumeSink stores a textual volume reading. *audio.Level satisfies it.
type VolumeSink interface {
	SetFromPayload(payload []byte) error
}

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// DeviceState is the payload of the device state topic.
type DeviceState struct {
	Active    bool   `json:"active"`
	Timestamp string `json:"timestamp"`
}

// EffectRequest is the payload of the display effect topic.
type EffectRequest struct {
	Type string `json:"type"`
}

// Bridge connects the display engine to an MQTT broker. It implements
// device.EventSink.
type Bridge struct {
	pub      Publisher
	displays Displays
	volume   VolumeSink
	logger   Logger
	scan     func()
	now      func() time.Time
	topics   mqtt.Topics

	states stateQueue
}

// New creates a Bridge and starts its state publisher. Device state is
// published from a single goroutine so device callers never wait on the
// broker and each device's retained state ends on its latest value.
// Close stops the publisher.
func New(pub Publisher, volume VolumeSink) *Bridge {
	b := &Bridge{
		pub:    pub,
		volume: volume,
		logger: noopLogger{},
		now:    time.Now,
	}
	b.states.init()
	go b.publishStates()
	return b
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// OnScan sets the function run for a scan request. It must not block.
func (b *Bridge) OnScan(fn func()) {
	b.scan = fn
}

// Start routes inbound messages to displays and subscribes to every
// inbound topic. The Bridge is usable as an EventSink before Start, which
// lets devices be created before their displays.
func (b *Bridge) Start(sub Subscriber, displays Displays) error {
	b.displays = displays
	handlers := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllDisplayPixels(), b.handlePixels},
		{b.topics.AllDisplayEffects(), b.handleEffect},
		{b.topics.AudioVolume(), b.handleVolume},
		{b.topics.CommandScan(), b.handleScan},
	}
	for _, h := range handlers {
		if err := sub.Subscribe(h.topic, inboundQoS, h.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", h.topic, err)
		}
	}
	return nil
}

// DeviceUpdated is part of device.EventSink. Frames are not mirrored to
// the broker.
func (b *Bridge) DeviceUpdated(string, device.Frame) {}

// DeviceStateChanged queues the device's retained state. A state not yet
// published is replaced by a newer one for the same device.
func (b *Bridge) DeviceStateChanged(deviceID string, active bool) {
	state := DeviceState{Active: active, Timestamp: b.now().UTC().Format(time.RFC3339)}
	if !b.states.put(deviceID, state) {
		b.logger.Debug("device state after close dropped", "device_id", deviceID, "active", active)
	}
}

// Close publishes the states still queued and stops the publisher.
// Later state changes are dropped. Close is idempotent.
func (b *Bridge) Close() {
	b.states.close()
}

func (b *Bridge) publishStates() {
	defer close(b.states.done)
	for {
		select {
		case <-b.states.wake:
			b.flushStates()
		case <-b.states.quit:
			b.flushStates()
			return
		}
	}
}

func (b *Bridge) flushStates() {
	ids, states := b.states.take()
	for _, id := range ids {
		if err := b.pub.PublishJSON(b.topics.DeviceState(id), states[id]); err != nil {
			b.logger.Warn("failed to publish device state", "device_id", id, "error", err)
		}
	}
}

// stateQueue holds the latest unpublished state per device, in the order
// devices first changed.
type stateQueue struct {
	mu      sync.Mutex
	order   []string
	pending map[string]DeviceState
	closed  bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func (q *stateQueue) init() {
	q.pending = make(map[string]DeviceState)
	q.wake = make(chan struct{}, 1)
	q.quit = make(chan struct{})
	q.done = make(chan struct{})
}

func (q *stateQueue) put(id string, state DeviceState) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, queued := q.pending[id]; !queued {
		q.order = append(q.order, id)
	}
	q.pending[id] = state
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *stateQueue) take() ([]string, map[string]DeviceState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids, states := q.order, q.pending
	q.order, q.pending = nil, make(map[string]DeviceState)
	return ids, states
}

func (q *stateQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.quit)
	<-q.done
}

func (b *Bridge) display(topic string) (*display.Display, error) {
	id, ok := b.topics.DisplayID(topic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return b.displays.Get(id)
}

func (b *Bridge) handlePixels(topic string, payload []byte) error {
	if len(payload)%3 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidFrame, len(payload))
	}
	id, ok := b.topics.DisplayID(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	frame := make(device.Frame, len(payload)/3)
	for i := range frame {
		frame[i] = device.Pixel{payload[3*i], payload[3*i+1], payload[3*i+2]}
	}

	// Frames are sent on the display registry's next tick.
	err := b.displays.Submit(id, frame)
	if errors.Is(err, display.ErrNotActive) {
		b.logger.Debug("frame for inactive display dropped", "display_id", id)
		return nil
	}
	return err
}

func (b *Bridge) handleEffect(topic string, payload []byte) error {
	d, err := b.display(topic)
	if err != nil {
		return err
	}

	var req EffectRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("decoding effect for %s: %w", d.ID(), err)
		}
	}
	if req.Type == "" {
		d.ClearEffect()
		return nil
	}
	return d.SetEffect(display.NamedEffect(req.Type))
}

func (b *Bridge) handleVolume(_ string, payload []byte) error {
	return b.volume.SetFromPayload(payload)
}

func (b *Bridge) handleScan(string, []byte) error {
	if b.scan == nil {
		return ErrScanUnavailable
	}
	b.scan()
	return nil
}

var _ device.EventSink = (*Bridge)(nil)
