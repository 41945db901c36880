package internal

import (
	"github.com/gclaussn/go-bpmn-runtime/engine"
)

// Notifications buffers the notifications, history records and metric updates of a command.
// Buffered values are published after the command has been committed, or discarded otherwise.
type Notifications struct {
	notifications []engine.Notification
	records       []engine.HistoryRecord
	metrics       []func(*Metrics)
}

func (n *Notifications) Add(notification engine.Notification) {
	n.notifications = append(n.notifications, notification)
}

func (n *Notifications) Clear() {
	n.notifications = nil
	n.records = nil
	n.metrics = nil
}

// Count buffers a metric update, applied on publish.
func (n *Notifications) Count(update func(*Metrics)) {
	n.metrics = append(n.metrics, update)
}

// Publish passes all buffered values to the event dispatcher and the history recorder of the options
// and applies the buffered metric updates. metrics may be nil.
func (n *Notifications) Publish(options engine.Options, metrics *Metrics) {
	defer n.Clear()

	for _, update := range n.metrics {
		update(metrics)
	}

	if dispatcher := options.EventDispatcher; dispatcher != nil {
		for _, notification := range n.notifications {
			dispatcher.Dispatch(notification)
		}
	}
	if recorder := options.HistoryRecorder; recorder != nil {
		for _, record := range n.records {
			recorder.Record(record)
		}
	}
}

func (n *Notifications) Record(record engine.HistoryRecord) {
	n.records = append(n.records, record)
}
