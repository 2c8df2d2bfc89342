package eventbus

type asyncEvent struct {
	topic string
	args  []any
}

// Start 启动异步处理 worker，可重复调用
func (b *Bus) Start() {
	b.startOnce.Do(func() {
		for i := 0; i < b.workerNum; i++ {
			b.wg.Add(1)
			go b.worker()
		}
	})
}

// Stop 等待队列排空后停止 worker
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.inflight.Wait()
		close(b.stopChan)
		b.wg.Wait()
	})
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopChan:
			return
		case event := <-b.workChan:
			b.dispatch(event)
		}
	}
}

func (b *Bus) dispatch(event asyncEvent) {
	defer b.inflight.Done()
	defer func() {
		// 订阅者 panic 不应拖垮 worker
		_ = recover()
	}()
	b.bus.Publish(event.topic, event.args...)
}

// PublishAsync 异步发布事件；队列满或总线已停止时丢弃
func (b *Bus) PublishAsync(topic string, args ...any) {
	select {
	case <-b.stopChan:
		b.dropped(topic)
		return
	default:
	}

	b.inflight.Add(1)
	select {
	case b.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		b.inflight.Done()
		b.dropped(topic)
	}
}

// Wait blocks until every queued event has been delivered.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

func (b *Bus) dropped(topic string) {
	if b.onDrop != nil {
		b.onDrop(topic)
	}
}
