package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Bus wraps a synchronous evbus.Bus with a bounded worker pool for
// fire-and-forget publishing.
type Bus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	inflight  sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	onDrop    func(topic string)
}

// New 创建事件总线；workerNum <= 0 时使用 4 个 worker
func New(workerNum int) *Bus {
	if workerNum <= 0 {
		workerNum = 4
	}
	return &Bus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 1000),
		stopChan:  make(chan struct{}),
	}
}

// OnDrop registers a callback for events discarded because the queue was full.
func (b *Bus) OnDrop(fn func(topic string)) {
	b.onDrop = fn
}

// Publish 同步发布事件
func (b *Bus) Publish(topic string, args ...any) {
	b.bus.Publish(topic, args...)
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(topic string, fn any) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(topic string, fn any) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback 检查是否有订阅者
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Async returns a publisher whose Publish enqueues instead of blocking.
func (b *Bus) Async() AsyncPublisher {
	b.Start()
	return AsyncPublisher{b: b}
}

// AsyncPublisher adapts PublishAsync to a plain Publish method.
type AsyncPublisher struct{ b *Bus }

func (p AsyncPublisher) Publish(topic string, args ...any) {
	p.b.PublishAsync(topic, args...)
}
