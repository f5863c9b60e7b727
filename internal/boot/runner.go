package boot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-nodes/internal/node"
)

// Runtime defaults used when DeviceInfo leaves a field at zero.
const (
	DefaultLoopInterval  = 100 * time.Millisecond
	DefaultStatsInterval = 60 * time.Second
	DefaultQueueSize     = 64

	// Implementation is published as $implementation.
	Implementation = "graylogic-node"
)

// Input sources recorded with every dispatched update.
const (
	SourceMQTT = "mqtt"
	SourceAPI  = "api"
)

// Transport is the MQTT surface the runner needs.
// *mqtt.Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetOnConnect(callback func())
}

// Input describes one dispatched property update and its outcome.
type Input struct {
	NodeID   string
	Property string
	Value    string
	Result   node.Result
	Source   string
	At       time.Time
}

// Observer is notified of every dispatched update, on the loop goroutine.
// Observers must not block.
type Observer interface {
	ObserveInput(ctx context.Context, in Input)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, in Input)

// ObserveInput calls f.
func (f ObserverFunc) ObserveInput(ctx context.Context, in Input) {
	f(ctx, in)
}

// StatsRecorder receives a runtime snapshot every stats interval.
// *influxdb.Client satisfies it.
type StatsRecorder interface {
	RecordStats(uptime time.Duration, nodes, queued int)
}

// Logger defines the logging interface used by the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceInfo identifies the device and tunes its runtime.
type DeviceInfo struct {
	ID        string
	Name      string
	BaseTopic string
	Version   string

	LoopInterval  time.Duration
	StatsInterval time.Duration
	QueueSize     int
}

// Options configures a Runner. Registry and Transport are required.
type Options struct {
	Device    DeviceInfo
	Registry  *node.Registry
	Transport Transport
	QoS       byte
	Observers []Observer
	Stats     StatsRecorder
	Logger    Logger
}

// update is one queued property update.
type update struct {
	nodeID   string
	property string
	value    string
	source   string
	reply    chan dispatchReply // nil for fire-and-forget MQTT updates
}

type dispatchReply struct {
	result node.Result
	err    error
}

// Runner drives the node lifecycle and routes inbound updates to nodes.
//
// All dispatch and every per-tick loop hook run on a single goroutine, so
// node handlers never run concurrently with each other.
type Runner struct {
	device    DeviceInfo
	registry  *node.Registry
	transport Transport
	topics    Topics
	qos       byte
	observers []Observer
	stats     StatsRecorder
	logger    Logger

	inbound chan update

	// setUp holds nodes whose setup hook succeeded. Only Start touches it.
	setUp map[*node.Node]bool

	mu        sync.Mutex // Protects lifecycle state below
	starting  bool
	started   bool
	stopped   bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a Runner. It does not touch the transport until Start.
func New(opts Options) (*Runner, error) {
	if opts.Registry == nil {
		return nil, errors.New("boot: registry is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("boot: transport is required")
	}
	if err := node.ValidateID(opts.Device.ID); err != nil {
		return nil, fmt.Errorf("boot: device id: %w", err)
	}

	dev := opts.Device
	if dev.BaseTopic == "" {
		dev.BaseTopic = "homie/"
	}
	if dev.Name == "" {
		dev.Name = dev.ID
	}
	if dev.LoopInterval <= 0 {
		dev.LoopInterval = DefaultLoopInterval
	}
	if dev.StatsInterval <= 0 {
		dev.StatsInterval = DefaultStatsInterval
	}
	if dev.QueueSize <= 0 {
		dev.QueueSize = DefaultQueueSize
	}

	qos := opts.QoS
	if qos > 2 {
		return nil, mqtt.ErrInvalidQoS
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Runner{
		device:    dev,
		registry:  opts.Registry,
		transport: opts.Transport,
		topics:    NewTopics(dev.BaseTopic, dev.ID),
		qos:       qos,
		observers: opts.Observers,
		stats:     opts.Stats,
		logger:    logger,
		inbound:   make(chan update, dev.QueueSize),
		setUp:     make(map[*node.Node]bool),
	}, nil
}

// Topics returns the device topic layout.
func (r *Runner) Topics() Topics {
	return r.topics
}

// Will returns the Last Will to register with the MQTT connection.
func Will(base, deviceID string, qos byte) *mqtt.Will {
	return &mqtt.Will{
		Topic:    NewTopics(base, deviceID).DeviceAttr(attrOnline),
		Payload:  "false",
		QoS:      qos,
		Retained: true,
	}
}

// Start boots the device.
//
// It runs every setup hook in registration order, advertises the device
// and its nodes, subscribes to their set topics, runs every ready-to-operate
// hook and then starts the loop goroutine. A setup error aborts Start
// before anything is published. Start may be retried after an error;
// nodes whose setup already succeeded are not set up again.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.starting || r.started || r.stopped {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.starting = true
	r.mu.Unlock()

	// Hooks run without r.mu held so they may call back into the runner.
	if err := r.boot(ctx); err != nil {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	r.startedAt = time.Now()
	r.starting = false
	r.started = true
	done := r.done
	r.mu.Unlock()

	go r.run(loopCtx, done)

	r.logger.Info("device ready",
		"nodes", r.registry.Count(),
		"loop_interval", r.device.LoopInterval,
	)
	return nil
}

// boot runs the setup sequence that precedes the loop.
func (r *Runner) boot(ctx context.Context) error {
	if err := r.registry.ForEachErr(func(n *node.Node) error {
		if r.setUp[n] {
			return nil
		}
		if err := n.RunSetup(ctx); err != nil {
			return err
		}
		r.setUp[n] = true
		return nil
	}); err != nil {
		return err
	}

	if err := r.advertise(); err != nil {
		return err
	}
	if err := r.subscribe(); err != nil {
		return err
	}

	r.registry.ForEach(func(n *node.Node) {
		n.RunReadyToOperate(ctx)
	})

	// Retained attributes survive a broker restart only if republished.
	r.transport.SetOnConnect(func() {
		if err := r.advertise(); err != nil {
			r.logger.Warn("re-advertising after reconnect failed", "error", err)
		}
	})
	return nil
}

// Stop stops the loop goroutine, waits for it and marks the device offline.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.started = false
	r.stopped = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	if err := r.publishDevice(attrOnline, "false"); err != nil {
		return fmt.Errorf("publishing offline state: %w", err)
	}
	r.logger.Info("device stopped")
	return nil
}

// Running reports whether the loop goroutine is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Uptime returns the time since Start, or zero when not running.
func (r *Runner) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return 0
	}
	return time.Since(r.startedAt)
}

// QueueDepth returns the number of updates waiting for dispatch.
func (r *Runner) QueueDepth() int {
	return len(r.inbound)
}

// SetProperty publishes a property state. Node handlers call it to echo
// accepted values.
func (r *Runner) SetProperty(nodeID, property, value string, retained bool) error {
	if err := node.ValidateID(nodeID); err != nil {
		return err
	}
	if err := node.ValidateProperty(property); err != nil {
		return err
	}
	return r.transport.Publish(r.topics.Property(nodeID, property), []byte(value), r.qos, retained)
}

// Inject dispatches an update that arrived outside MQTT and waits for the
// result. It is serialised with MQTT updates on the loop goroutine.
//
// A node id that is not registered returns Unhandled with ErrNodeNotFound.
func (r *Runner) Inject(ctx context.Context, nodeID, property, value string) (node.Result, error) {
	r.mu.Lock()
	started, done := r.started, r.done
	r.mu.Unlock()
	if !started {
		return node.Unhandled, ErrNotStarted
	}

	u := update{
		nodeID:   nodeID,
		property: property,
		value:    value,
		source:   SourceAPI,
		reply:    make(chan dispatchReply, 1),
	}

	select {
	case r.inbound <- u:
	case <-ctx.Done():
		return node.Unhandled, ctx.Err()
	case <-done:
		return node.Unhandled, ErrNotStarted
	}

	select {
	case reply := <-u.reply:
		return reply.result, reply.err
	case <-ctx.Done():
		return node.Unhandled, ctx.Err()
	case <-done:
		return node.Unhandled, ErrNotStarted
	}
}

// HandleMessage is the MQTT handler for set topics. Malformed topics and
// topics for another device are dropped. A full queue drops the update
// and returns ErrQueueFull.
func (r *Runner) HandleMessage(topic string, payload []byte) error {
	nodeID, property, err := r.topics.ParseSetTopic(topic)
	if err != nil {
		r.logger.Debug("dropping message", "topic", topic, "reason", err)
		return nil
	}

	u := update{
		nodeID:   nodeID,
		property: property,
		value:    string(payload),
		source:   SourceMQTT,
	}

	select {
	case r.inbound <- u:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s/%s", ErrQueueFull, nodeID, property)
	}
}

// handleBroadcast logs broadcasts; nodes do not consume them.
func (r *Runner) handleBroadcast(topic string, payload []byte) error {
	level, ok := r.topics.ParseBroadcast(topic)
	if !ok {
		return nil
	}
	r.logger.Info("broadcast received", "level", level, "payload", string(payload))
	return nil
}

// run owns dispatch and loop hooks until ctx is cancelled.
func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	loopTicker := time.NewTicker(r.device.LoopInterval)
	defer loopTicker.Stop()
	statsTicker := time.NewTicker(r.device.StatsInterval)
	defer statsTicker.Stop()

	r.publishStats()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-r.inbound:
			r.process(ctx, u)
		case <-loopTicker.C:
			r.registry.ForEach(func(n *node.Node) {
				n.RunLoop(ctx)
			})
		case <-statsTicker.C:
			r.publishStats()
		}
	}
}

// process dispatches one update and notifies observers.
func (r *Runner) process(ctx context.Context, u update) {
	var (
		result node.Result
		err    error
	)

	n, ok := r.registry.FindByID(u.nodeID)
	if ok {
		result = n.Dispatch(u.property, u.value)
	} else {
		err = fmt.Errorf("%w: %s", node.ErrNodeNotFound, u.nodeID)
		r.logger.Warn("update for unknown node", "node", u.nodeID, "property", u.property)
	}

	r.logger.Debug("update dispatched",
		"node", u.nodeID,
		"property", u.property,
		"result", result.String(),
		"source", u.source,
	)

	in := Input{
		NodeID:   u.nodeID,
		Property: u.property,
		Value:    u.value,
		Result:   result,
		Source:   u.source,
		At:       time.Now().UTC(),
	}
	for _, o := range r.observers {
		o.ObserveInput(ctx, in)
	}

	if u.reply != nil {
		u.reply <- dispatchReply{result: result, err: err}
	}
}

// advertise publishes the retained device and node attributes.
func (r *Runner) advertise() error {
	nodes := r.registry.Nodes()

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID())
	}

	deviceAttrs := []struct{ attr, value string }{
		{attrHomie, homieVersion},
		{attrOnline, "true"},
		{attrName, r.device.Name},
		{attrImplementation, Implementation},
		{attrFwName, Implementation},
		{attrFwVersion, r.device.Version},
		{attrNodes, strings.Join(ids, ",")},
		{attrStatsInterval, strconv.Itoa(int(r.device.StatsInterval / time.Second))},
	}
	for _, a := range deviceAttrs {
		if err := r.publishDevice(a.attr, a.value); err != nil {
			return fmt.Errorf("advertising %s: %w", a.attr, err)
		}
	}

	for _, n := range nodes {
		if err := r.publishNode(n.ID(), attrType, n.Type()); err != nil {
			return fmt.Errorf("advertising node %s: %w", n.ID(), err)
		}
		if err := r.publishNode(n.ID(), attrProperties, propertiesAttr(n)); err != nil {
			return fmt.Errorf("advertising node %s: %w", n.ID(), err)
		}
	}
	return nil
}

// propertiesAttr renders $properties; every subscribed property is settable.
func propertiesAttr(n *node.Node) string {
	props := n.Properties()
	for i, p := range props {
		props[i] = p + settableSuffix
	}
	return strings.Join(props, ",")
}

// subscribe subscribes to every set topic the nodes listen on.
func (r *Runner) subscribe() error {
	for _, filter := range r.filters() {
		if err := r.transport.Subscribe(filter, r.qos, r.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", filter, err)
		}
	}
	if err := r.transport.Subscribe(r.topics.Broadcast(), r.qos, r.handleBroadcast); err != nil {
		return fmt.Errorf("subscribing to broadcasts: %w", err)
	}
	return nil
}

// filters returns the set-topic filters, one per node that listens to all
// properties and one per subscribed property otherwise.
func (r *Runner) filters() []string {
	var filters []string
	r.registry.ForEach(func(n *node.Node) {
		if n.IsSubscribedToAll() {
			filters = append(filters, r.topics.NodeSetAll(n.ID()))
			return
		}
		for _, p := range n.Properties() {
			filters = append(filters, r.topics.PropertySet(n.ID(), p))
		}
	})
	return filters
}

func (r *Runner) publishStats() {
	uptime := r.Uptime()
	if err := r.publishDevice(attrStatsUptime, strconv.FormatInt(int64(uptime/time.Second), 10)); err != nil {
		r.logger.Warn("publishing stats failed", "error", err)
	}
	if r.stats != nil {
		r.stats.RecordStats(uptime, r.registry.Count(), r.QueueDepth())
	}
}

func (r *Runner) publishDevice(attr, value string) error {
	return r.transport.Publish(r.topics.DeviceAttr(attr), []byte(value), r.qos, true)
}

func (r *Runner) publishNode(nodeID, attr, value string) error {
	return r.transport.Publish(r.topics.NodeAttr(nodeID, attr), []byte(value), r.qos, true)
}
