package boot

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/mqtt"
)

type publication struct {
	topic    string
	payload  string
	retained bool
}

// fakeTransport records publications and routes delivered messages to
// subscribed handlers by filter.
type fakeTransport struct {
	mu            sync.Mutex
	published     []publication
	subscriptions map[string]mqtt.MessageHandler
	order         []string
	onConnect     func()
	publishErr    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subscriptions: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeTransport) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publication{topic: topic, payload: string(payload), retained: retained})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[topic] = handler
	f.order = append(f.order, topic)
	return nil
}

func (f *fakeTransport) failPublish(err error) {
	f.mu.Lock()
	f.publishErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) SetOnConnect(callback func()) {
	f.mu.Lock()
	f.onConnect = callback
	f.mu.Unlock()
}

// deliver hands a message to every matching subscription.
func (f *fakeTransport) deliver(topic, payload string) []error {
	f.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range f.subscriptions {
		if mqtt.MatchTopic(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	f.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := h(topic, []byte(payload)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (f *fakeTransport) reconnect() {
	f.mu.Lock()
	cb := f.onConnect
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// last returns the most recent publication on topic.
func (f *fakeTransport) last(topic string) (publication, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.published) - 1; i >= 0; i-- {
		if f.published[i].topic == topic {
			return f.published[i], true
		}
	}
	return publication{}, false
}

func (f *fakeTransport) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.published {
		if p.topic == topic {
			n++
		}
	}
	return n
}

func (f *fakeTransport) filters() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// inputs collects observed inputs on a channel.
type inputs chan Input

func (c inputs) ObserveInput(_ context.Context, in Input) {
	c <- in
}
