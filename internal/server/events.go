package server

import (
	"context"
	"sync"

	"github.com/localizd/localizd/backend/internal/branches"
)

const mergeEventStream = "branch-merged"

// EventDispatcher fans merge events out to per-project subscribers. It
// implements branches.EventPublisher; publishing never blocks, slow
// subscribers drop events.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
}

type eventSubscriber struct {
	id     int64
	stream chan branches.BranchMergedEvent
}

// NewEventDispatcher constructs a dispatcher with a small per-subscriber buffer.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[string]map[int64]*eventSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers for a project's merge events until ctx is done.
func (d *EventDispatcher) Subscribe(ctx context.Context, projectID string) (<-chan branches.BranchMergedEvent, func()) {
	if projectID == "" {
		ch := make(chan branches.BranchMergedEvent)
		close(ch)
		return ch, func() {}
	}
	subscriber := &eventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan branches.BranchMergedEvent, d.bufferSize),
	}
	d.registerSubscriber(projectID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(projectID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// PublishBranchMerged delivers the event to every subscriber of its project.
func (d *EventDispatcher) PublishBranchMerged(event branches.BranchMergedEvent) {
	if event.ProjectID == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.ProjectID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*eventSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *EventDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *EventDispatcher) registerSubscriber(projectID string, subscriber *eventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[projectID]; !ok {
		d.subscribers[projectID] = make(map[int64]*eventSubscriber)
	}
	d.subscribers[projectID][subscriber.id] = subscriber
}

func (d *EventDispatcher) unregisterSubscriber(projectID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[projectID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, projectID)
		}
	}
	d.mu.Unlock()
}
