package boot

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-nodes/internal/node"
)

const waitTimeout = 2 * time.Second

type statsRecorder struct {
	calls atomic.Int32
	nodes atomic.Int32
}

func (s *statsRecorder) RecordStats(_ time.Duration, nodes, _ int) {
	s.nodes.Store(int32(nodes))
	s.calls.Add(1)
}

// newTestRunner builds a runner over a light with two properties and a
// node subscribed to everything with an accepting fallback.
func newTestRunner(t *testing.T, observers ...Observer) (*Runner, *fakeTransport, *node.Registry) {
	t.Helper()

	reg := node.NewRegistry()
	light, err := reg.NewNode("light1", "light")
	if err != nil {
		t.Fatalf("NewNode(light1) error = %v", err)
	}
	if err := light.Subscribe("on", func(v string) bool { return v == "true" || v == "false" }); err != nil {
		t.Fatalf("Subscribe(on) error = %v", err)
	}
	if err := light.Subscribe("brightness", func(string) bool { return true }); err != nil {
		t.Fatalf("Subscribe(brightness) error = %v", err)
	}

	catchall, err := reg.NewNode("catchall", "debug",
		node.WithInputHandler(func(string, string) bool { return true }))
	if err != nil {
		t.Fatalf("NewNode(catchall) error = %v", err)
	}
	catchall.SubscribeToAll()

	transport := newFakeTransport()
	r, err := New(Options{
		Device: DeviceInfo{
			ID:           "porch",
			Name:         "Porch",
			BaseTopic:    "homie/",
			Version:      "1.2.3",
			LoopInterval: time.Millisecond,
		},
		Registry:  reg,
		Transport: transport,
		QoS:       1,
		Observers: observers,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, transport, reg
}

func startRunner(t *testing.T, r *Runner) {
	t.Helper()
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if r.Running() {
			r.Stop() //nolint:errcheck // Test cleanup
		}
	})
}

func waitInput(t *testing.T, ch inputs) Input {
	t.Helper()
	select {
	case in := <-ch:
		return in
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for dispatched input")
		return Input{}
	}
}

func TestNew_Validation(t *testing.T) {
	reg := node.NewRegistry()
	transport := newFakeTransport()

	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing registry", opts: Options{Device: DeviceInfo{ID: "porch"}, Transport: transport}},
		{name: "missing transport", opts: Options{Device: DeviceInfo{ID: "porch"}, Registry: reg}},
		{name: "invalid device id", opts: Options{Device: DeviceInfo{ID: "Porch Light"}, Registry: reg, Transport: transport}},
		{name: "invalid qos", opts: Options{Device: DeviceInfo{ID: "porch"}, Registry: reg, Transport: transport, QoS: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(Options{
		Device:    DeviceInfo{ID: "porch"},
		Registry:  node.NewRegistry(),
		Transport: newFakeTransport(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if r.device.Name != "porch" {
		t.Errorf("Name = %q, want device id", r.device.Name)
	}
	if r.Topics().Base != "homie/" {
		t.Errorf("Base = %q, want homie/", r.Topics().Base)
	}
	if r.device.LoopInterval != DefaultLoopInterval {
		t.Errorf("LoopInterval = %v, want %v", r.device.LoopInterval, DefaultLoopInterval)
	}
	if r.device.StatsInterval != DefaultStatsInterval {
		t.Errorf("StatsInterval = %v, want %v", r.device.StatsInterval, DefaultStatsInterval)
	}
	if cap(r.inbound) != DefaultQueueSize {
		t.Errorf("queue size = %d, want %d", cap(r.inbound), DefaultQueueSize)
	}
}

func TestStart_Advertises(t *testing.T) {
	r, transport, _ := newTestRunner(t)
	startRunner(t, r)

	tests := []struct {
		topic string
		want  string
	}{
		{"homie/porch/$homie", "2.0.0"},
		{"homie/porch/$online", "true"},
		{"homie/porch/$name", "Porch"},
		{"homie/porch/$implementation", Implementation},
		{"homie/porch/$fw/version", "1.2.3"},
		{"homie/porch/$nodes", "light1,catchall"},
		{"homie/porch/$stats/interval", "60"},
		{"homie/porch/light1/$type", "light"},
		{"homie/porch/light1/$properties", "on:settable,brightness:settable"},
		{"homie/porch/catchall/$type", "debug"},
		{"homie/porch/catchall/$properties", ""},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			p, ok := transport.last(tt.topic)
			if !ok {
				t.Fatalf("%s not published", tt.topic)
			}
			if p.payload != tt.want {
				t.Errorf("%s = %q, want %q", tt.topic, p.payload, tt.want)
			}
			if !p.retained {
				t.Errorf("%s not retained", tt.topic)
			}
		})
	}
}

func TestStart_Subscribes(t *testing.T) {
	r, transport, _ := newTestRunner(t)
	startRunner(t, r)

	want := []string{
		"homie/porch/light1/on/set",
		"homie/porch/light1/brightness/set",
		"homie/porch/catchall/+/set",
		"homie/$broadcast/#",
	}
	if got := transport.filters(); !slices.Equal(got, want) {
		t.Errorf("filters = %v, want %v", got, want)
	}
}

func TestStart_HookOrder(t *testing.T) {
	reg := node.NewRegistry()
	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(s string) {
		mu.Lock()
		calls = append(calls, s)
		mu.Unlock()
	}

	for _, id := range []string{"a", "b"} {
		_, err := reg.NewNode(id, "test",
			node.WithSetup(func(_ context.Context, n *node.Node) error {
				record("setup " + n.ID())
				return n.Subscribe("value", nil)
			}),
			node.WithReadyToOperate(func(_ context.Context, n *node.Node) {
				record("ready " + n.ID())
			}),
		)
		if err != nil {
			t.Fatalf("NewNode(%q) error = %v", id, err)
		}
	}

	transport := newFakeTransport()
	r, err := New(Options{Device: DeviceInfo{ID: "dev"}, Registry: reg, Transport: transport})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startRunner(t, r)

	mu.Lock()
	got := append([]string(nil), calls...)
	mu.Unlock()

	want := []string{"setup a", "setup b", "ready a", "ready b"}
	if !slices.Equal(got, want) {
		t.Errorf("hook order = %v, want %v", got, want)
	}

	// Subscriptions declared in setup are advertised and subscribed.
	if p, _ := transport.last("homie/dev/a/$properties"); p.payload != "value:settable" {
		t.Errorf("a/$properties = %q, want value:settable", p.payload)
	}
	if !slices.Contains(transport.filters(), "homie/dev/b/value/set") {
		t.Errorf("filters = %v, missing b/value/set", transport.filters())
	}
}

func TestStart_SetupErrorAborts(t *testing.T) {
	reg := node.NewRegistry()
	boom := errors.New("sensor missing")
	if _, err := reg.NewNode("a", "test", node.WithSetup(func(context.Context, *node.Node) error {
		return boom
	})); err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}

	transport := newFakeTransport()
	r, err := New(Options{Device: DeviceInfo{ID: "dev"}, Registry: reg, Transport: transport})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := r.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
	if r.Running() {
		t.Error("Running() = true after failed Start")
	}
	if len(transport.published) != 0 {
		t.Errorf("published %d messages after failed setup, want 0", len(transport.published))
	}
}

func TestStart_RetryAfterBrokerError(t *testing.T) {
	reg := node.NewRegistry()
	setups := map[string]int{}
	for _, id := range []string{"a", "b"} {
		_, err := reg.NewNode(id, "test", node.WithSetup(func(_ context.Context, n *node.Node) error {
			setups[n.ID()]++
			return n.Subscribe("value", func(string) bool { return true })
		}))
		if err != nil {
			t.Fatalf("NewNode(%q) error = %v", id, err)
		}
	}

	transport := newFakeTransport()
	r, err := New(Options{Device: DeviceInfo{ID: "dev"}, Registry: reg, Transport: transport})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hiccup := errors.New("broker hiccup")
	transport.failPublish(hiccup)
	if err := r.Start(context.Background()); !errors.Is(err, hiccup) {
		t.Fatalf("Start() error = %v, want %v", err, hiccup)
	}
	if r.Running() {
		t.Fatal("Running() = true after failed Start")
	}

	transport.failPublish(nil)
	startRunner(t, r)

	for _, id := range []string{"a", "b"} {
		if setups[id] != 1 {
			t.Errorf("setup %s ran %d times, want 1", id, setups[id])
		}
	}
	if p, _ := transport.last("homie/dev/$online"); p.payload != "true" {
		t.Errorf("$online after retry = %q, want true", p.payload)
	}
	if !slices.Contains(transport.filters(), "homie/dev/b/value/set") {
		t.Errorf("filters = %v, missing b/value/set", transport.filters())
	}
}

func TestStart_RetryAfterSetupError(t *testing.T) {
	reg := node.NewRegistry()
	var aSetups int
	failB := true
	if _, err := reg.NewNode("a", "test", node.WithSetup(func(_ context.Context, n *node.Node) error {
		aSetups++
		return n.Subscribe("value", nil)
	})); err != nil {
		t.Fatalf("NewNode(a) error = %v", err)
	}
	boom := errors.New("sensor missing")
	if _, err := reg.NewNode("b", "test", node.WithSetup(func(context.Context, *node.Node) error {
		if failB {
			return boom
		}
		return nil
	})); err != nil {
		t.Fatalf("NewNode(b) error = %v", err)
	}

	r, err := New(Options{Device: DeviceInfo{ID: "dev"}, Registry: reg, Transport: newFakeTransport()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}

	failB = false
	startRunner(t, r)
	if aSetups != 1 {
		t.Errorf("setup a ran %d times, want 1", aSetups)
	}
}

func TestLifecycleErrors(t *testing.T) {
	r, transport, _ := newTestRunner(t)

	if err := r.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop() before Start error = %v, want ErrNotStarted", err)
	}
	if _, err := r.Inject(context.Background(), "light1", "on", "true"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Inject() before Start error = %v, want ErrNotStarted", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p, _ := transport.last("homie/porch/$online"); p.payload != "false" {
		t.Errorf("$online after Stop = %q, want false", p.payload)
	}
	if err := r.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second Stop() error = %v, want ErrNotStarted", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() after Stop error = %v, want ErrAlreadyStarted", err)
	}
}

func TestDispatch_FromTransport(t *testing.T) {
	observed := make(inputs, 8)
	r, transport, _ := newTestRunner(t, observed)
	startRunner(t, r)

	tests := []struct {
		name       string
		topic      string
		payload    string
		wantNode   string
		wantResult node.Result
	}{
		{name: "accepted", topic: "homie/porch/light1/on/set", payload: "true", wantNode: "light1", wantResult: node.Accepted},
		{name: "rejected", topic: "homie/porch/light1/on/set", payload: "maybe", wantNode: "light1", wantResult: node.Rejected},
		{name: "subscribe to all", topic: "homie/porch/catchall/anything/set", payload: "x", wantNode: "catchall", wantResult: node.Accepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errs := transport.deliver(tt.topic, tt.payload); len(errs) != 0 {
				t.Fatalf("deliver() errors = %v", errs)
			}
			in := waitInput(t, observed)
			if in.NodeID != tt.wantNode || in.Value != tt.payload {
				t.Errorf("input = %+v, want node %s value %s", in, tt.wantNode, tt.payload)
			}
			if in.Result != tt.wantResult {
				t.Errorf("Result = %v, want %v", in.Result, tt.wantResult)
			}
			if in.Source != SourceMQTT {
				t.Errorf("Source = %q, want %q", in.Source, SourceMQTT)
			}
		})
	}
}

func TestHandleMessage_Drops(t *testing.T) {
	observed := make(inputs, 8)
	r, _, _ := newTestRunner(t, observed)
	startRunner(t, r)

	for _, topic := range []string{
		"homie/garage/light1/on/set",
		"homie/porch/light1/on",
		"homie/porch/$stats/uptime/set",
	} {
		if err := r.HandleMessage(topic, []byte("true")); err != nil {
			t.Errorf("HandleMessage(%q) error = %v, want nil", topic, err)
		}
	}

	// An unknown node is dispatched and reported as unhandled.
	if err := r.HandleMessage("homie/porch/heater/on/set", []byte("true")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	in := waitInput(t, observed)
	if in.NodeID != "heater" || in.Result != node.Unhandled {
		t.Errorf("input = %+v, want heater unhandled", in)
	}

	select {
	case extra := <-observed:
		t.Errorf("unexpected input %+v", extra)
	default:
	}
}

func TestHandleMessage_QueueFull(t *testing.T) {
	transport := newFakeTransport()
	r, err := New(Options{
		Device:    DeviceInfo{ID: "porch", QueueSize: 1},
		Registry:  node.NewRegistry(),
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Not started, so nothing drains the queue.
	if err := r.HandleMessage("homie/porch/a/b/set", []byte("1")); err != nil {
		t.Fatalf("first HandleMessage() error = %v", err)
	}
	if err := r.HandleMessage("homie/porch/a/b/set", []byte("2")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second HandleMessage() error = %v, want ErrQueueFull", err)
	}
	if r.QueueDepth() != 1 {
		t.Errorf("QueueDepth() = %d, want 1", r.QueueDepth())
	}
}

func TestInject(t *testing.T) {
	observed := make(inputs, 8)
	r, _, _ := newTestRunner(t, observed)
	startRunner(t, r)
	ctx := context.Background()

	tests := []struct {
		name       string
		nodeID     string
		property   string
		value      string
		wantResult node.Result
		wantErr    error
	}{
		{name: "accepted", nodeID: "light1", property: "on", value: "false", wantResult: node.Accepted},
		{name: "rejected", nodeID: "light1", property: "on", value: "dim", wantResult: node.Rejected},
		{name: "unsubscribed property without fallback", nodeID: "light1", property: "color", value: "red", wantResult: node.Unhandled},
		{name: "unknown node", nodeID: "heater", property: "on", value: "true", wantResult: node.Unhandled, wantErr: node.ErrNodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Inject(ctx, tt.nodeID, tt.property, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Inject() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.wantResult {
				t.Errorf("Inject() = %v, want %v", got, tt.wantResult)
			}
			in := waitInput(t, observed)
			if in.Source != SourceAPI {
				t.Errorf("Source = %q, want %q", in.Source, SourceAPI)
			}
		})
	}
}

func TestInject_ContextCancelled(t *testing.T) {
	r, _, _ := newTestRunner(t)
	startRunner(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The loop may win the race and dispatch; either outcome is valid,
	// but Inject must return promptly.
	done := make(chan struct{})
	go func() {
		r.Inject(ctx, "light1", "on", "true") //nolint:errcheck // Only checking it returns
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Inject() did not return after cancellation")
	}
}

func TestHandlersRunOnOneGoroutine(t *testing.T) {
	reg := node.NewRegistry()
	var active, overlaps atomic.Int32
	n, err := reg.NewNode("counter", "test")
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	if err := n.Subscribe("value", func(string) bool {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(100 * time.Microsecond)
		active.Add(-1)
		return true
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	r, err := New(Options{Device: DeviceInfo{ID: "dev", QueueSize: 256}, Registry: reg, Transport: newFakeTransport()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startRunner(t, r)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := r.Inject(context.Background(), "counter", "value", "1"); err != nil {
					t.Errorf("Inject() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("handlers overlapped %d times", overlaps.Load())
	}
}

func TestLoopHooksRun(t *testing.T) {
	reg := node.NewRegistry()
	var ticks atomic.Int32
	if _, err := reg.NewNode("ticker", "test", node.WithLoop(func(context.Context, *node.Node) {
		ticks.Add(1)
	})); err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}

	r, err := New(Options{
		Device:    DeviceInfo{ID: "dev", LoopInterval: time.Millisecond},
		Registry:  reg,
		Transport: newFakeTransport(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startRunner(t, r)

	deadline := time.Now().Add(waitTimeout)
	for ticks.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("loop hook ran %d times, want at least 3", ticks.Load())
		}
		time.Sleep(time.Millisecond)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	after := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	if ticks.Load() != after {
		t.Error("loop hook ran after Stop")
	}
}

func TestSetProperty(t *testing.T) {
	r, transport, _ := newTestRunner(t)

	if err := r.SetProperty("light1", "on", "true", true); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	p, ok := transport.last("homie/porch/light1/on")
	if !ok || p.payload != "true" || !p.retained {
		t.Errorf("published %+v, want retained true", p)
	}

	if err := r.SetProperty("light1", "$type", "x", false); !errors.Is(err, node.ErrInvalidProperty) {
		t.Errorf("SetProperty(bad property) error = %v, want ErrInvalidProperty", err)
	}
	if err := r.SetProperty("Light 1", "on", "x", false); !errors.Is(err, node.ErrInvalidID) {
		t.Errorf("SetProperty(bad node) error = %v, want ErrInvalidID", err)
	}
}

func TestStats(t *testing.T) {
	stats := &statsRecorder{}
	reg := node.NewRegistry()
	if _, err := reg.NewNode("a", "test"); err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	transport := newFakeTransport()
	r, err := New(Options{
		Device:    DeviceInfo{ID: "dev", StatsInterval: 5 * time.Millisecond},
		Registry:  reg,
		Transport: transport,
		Stats:     stats,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startRunner(t, r)

	deadline := time.Now().Add(waitTimeout)
	for stats.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("RecordStats called %d times, want at least 2", stats.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	if stats.nodes.Load() != 1 {
		t.Errorf("nodes = %d, want 1", stats.nodes.Load())
	}
	if transport.count("homie/dev/$stats/uptime") < 2 {
		t.Error("$stats/uptime not published every interval")
	}
}

func TestReconnectReadvertises(t *testing.T) {
	r, transport, _ := newTestRunner(t)
	startRunner(t, r)

	before := transport.count("homie/porch/$homie")
	transport.reconnect()
	if got := transport.count("homie/porch/$homie"); got != before+1 {
		t.Errorf("$homie published %d times after reconnect, want %d", got, before+1)
	}
}

func TestBroadcastIsNotDispatched(t *testing.T) {
	observed := make(inputs, 1)
	r, transport, _ := newTestRunner(t, observed)
	startRunner(t, r)

	if errs := transport.deliver("homie/$broadcast/alert", "fire"); len(errs) != 0 {
		t.Fatalf("deliver() errors = %v", errs)
	}
	select {
	case in := <-observed:
		t.Errorf("broadcast dispatched as %+v", in)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestWill(t *testing.T) {
	w := Will("homie", "porch", 1)
	if w.Topic != "homie/porch/$online" || w.Payload != "false" || !w.Retained || w.QoS != 1 {
		t.Errorf("Will() = %+v", w)
	}
}
