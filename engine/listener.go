package engine

import (
	"log/slog"
	"time"
)

// NotificationType is the type of a lifecycle notification, emitted by an engine.
type NotificationType int

const (
	NotificationActivityCompleted NotificationType = iota + 1
	NotificationActivityStarted
	NotificationJobCreated
	NotificationJobDeleted
	NotificationProcessInstanceEnded
	NotificationProcessInstanceStarted
	NotificationTimerFired
)

func (v NotificationType) String() string {
	switch v {
	case NotificationActivityCompleted:
		return "ACTIVITY_COMPLETED"
	case NotificationActivityStarted:
		return "ACTIVITY_STARTED"
	case NotificationJobCreated:
		return "JOB_CREATED"
	case NotificationJobDeleted:
		return "JOB_DELETED"
	case NotificationProcessInstanceEnded:
		return "PROCESS_INSTANCE_ENDED"
	case NotificationProcessInstanceStarted:
		return "PROCESS_INSTANCE_STARTED"
	case NotificationTimerFired:
		return "TIMER_FIRED"
	default:
		return "UNKNOWN"
	}
}

// Notification is a lifecycle event of a process instance, activity or job.
type Notification struct {
	Type NotificationType
	Time time.Time

	ExecutionId         int32
	JobId               int32
	ProcessDefinitionId int32
	ProcessInstanceId   int32

	BpmnElementId string
	Reason        string // Reason of an ended process instance, e.g. "deleted" or "terminated".
	TenantId      string
}

// An EventDispatcher receives the notifications of a command, after the command has been committed.
//
// Dispatching is fire-and-forget: an engine neither waits for nor depends on the outcome.
type EventDispatcher interface {
	Dispatch(Notification)
}

// EventDispatcherFunc is an adapter to allow the use of an ordinary function as [EventDispatcher].
type EventDispatcherFunc func(Notification)

func (f EventDispatcherFunc) Dispatch(notification Notification) {
	f(notification)
}

// NewLogDispatcher returns an [EventDispatcher], which logs every notification at debug level.
func NewLogDispatcher(logger *slog.Logger) EventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return EventDispatcherFunc(func(n Notification) {
		logger.Debug(n.Type.String(),
			"processDefinitionId", n.ProcessDefinitionId,
			"processInstanceId", n.ProcessInstanceId,
			"executionId", n.ExecutionId,
			"jobId", n.JobId,
			"bpmnElementId", n.BpmnElementId,
			"tenantId", n.TenantId,
		)
	})
}

// HistoryRecord holds the start or end of a process instance or an activity.
type HistoryRecord struct {
	ExecutionId         int32
	ProcessDefinitionId int32
	ProcessInstanceId   int32

	BpmnElementId string
	EndedAt       *time.Time
	Name          string // Name of the BPMN element.
	StartedAt     time.Time
	TenantId      string
}

// A HistoryRecorder is a sink for history records. It is never consulted by an engine.
type HistoryRecorder interface {
	Record(HistoryRecord)
}
