package model

import "fmt"

// ElementType describes the different BPMN element types - especially tasks, gateways and events.
type ElementType int

const (
	ElementEventBasedGateway ElementType = iota + 1
	ElementExclusiveGateway
	ElementInclusiveGateway
	ElementManualTask
	ElementMessageBoundaryEvent
	ElementMessageCatchEvent
	ElementMessageStartEvent
	ElementNoneEndEvent
	ElementNoneStartEvent
	ElementParallelGateway
	ElementProcess
	ElementReceiveTask
	ElementScriptTask
	ElementServiceTask
	ElementSignalBoundaryEvent
	ElementSignalCatchEvent
	ElementSignalStartEvent
	ElementSubProcess
	ElementTask
	ElementTerminateEndEvent
	ElementTimerBoundaryEvent
	ElementTimerCatchEvent
	ElementTimerStartEvent
	ElementUserTask
)

func MapElementType(s string) ElementType {
	switch s {
	case "EVENT_BASED_GATEWAY":
		return ElementEventBasedGateway
	case "EXCLUSIVE_GATEWAY":
		return ElementExclusiveGateway
	case "INCLUSIVE_GATEWAY":
		return ElementInclusiveGateway
	case "MANUAL_TASK":
		return ElementManualTask
	case "MESSAGE_BOUNDARY_EVENT":
		return ElementMessageBoundaryEvent
	case "MESSAGE_CATCH_EVENT":
		return ElementMessageCatchEvent
	case "MESSAGE_START_EVENT":
		return ElementMessageStartEvent
	case "NONE_END_EVENT":
		return ElementNoneEndEvent
	case "NONE_START_EVENT":
		return ElementNoneStartEvent
	case "PARALLEL_GATEWAY":
		return ElementParallelGateway
	case "PROCESS":
		return ElementProcess
	case "RECEIVE_TASK":
		return ElementReceiveTask
	case "SCRIPT_TASK":
		return ElementScriptTask
	case "SERVICE_TASK":
		return ElementServiceTask
	case "SIGNAL_BOUNDARY_EVENT":
		return ElementSignalBoundaryEvent
	case "SIGNAL_CATCH_EVENT":
		return ElementSignalCatchEvent
	case "SIGNAL_START_EVENT":
		return ElementSignalStartEvent
	case "SUB_PROCESS":
		return ElementSubProcess
	case "TASK":
		return ElementTask
	case "TERMINATE_END_EVENT":
		return ElementTerminateEndEvent
	case "TIMER_BOUNDARY_EVENT":
		return ElementTimerBoundaryEvent
	case "TIMER_CATCH_EVENT":
		return ElementTimerCatchEvent
	case "TIMER_START_EVENT":
		return ElementTimerStartEvent
	case "USER_TASK":
		return ElementUserTask
	default:
		return 0
	}
}

func (v ElementType) IsBoundaryEvent() bool {
	switch v {
	case ElementMessageBoundaryEvent, ElementSignalBoundaryEvent, ElementTimerBoundaryEvent:
		return true
	default:
		return false
	}
}

func (v ElementType) IsGateway() bool {
	switch v {
	case ElementEventBasedGateway, ElementExclusiveGateway, ElementInclusiveGateway, ElementParallelGateway:
		return true
	default:
		return false
	}
}

func (v ElementType) IsStartEvent() bool {
	switch v {
	case ElementMessageStartEvent, ElementNoneStartEvent, ElementSignalStartEvent, ElementTimerStartEvent:
		return true
	default:
		return false
	}
}

// IsWaitState reports whether a token stays at an element of this type until it is triggered from outside.
func (v ElementType) IsWaitState() bool {
	switch v {
	case
		ElementMessageCatchEvent,
		ElementReceiveTask,
		ElementSignalCatchEvent,
		ElementTimerCatchEvent,
		ElementUserTask:
		return true
	default:
		return false
	}
}

func (v ElementType) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", v.String())), nil
}

func (v ElementType) String() string {
	switch v {
	case ElementEventBasedGateway:
		return "EVENT_BASED_GATEWAY"
	case ElementExclusiveGateway:
		return "EXCLUSIVE_GATEWAY"
	case ElementInclusiveGateway:
		return "INCLUSIVE_GATEWAY"
	case ElementManualTask:
		return "MANUAL_TASK"
	case ElementMessageBoundaryEvent:
		return "MESSAGE_BOUNDARY_EVENT"
	case ElementMessageCatchEvent:
		return "MESSAGE_CATCH_EVENT"
	case ElementMessageStartEvent:
		return "MESSAGE_START_EVENT"
	case ElementNoneEndEvent:
		return "NONE_END_EVENT"
	case ElementNoneStartEvent:
		return "NONE_START_EVENT"
	case ElementParallelGateway:
		return "PARALLEL_GATEWAY"
	case ElementProcess:
		return "PROCESS"
	case ElementReceiveTask:
		return "RECEIVE_TASK"
	case ElementScriptTask:
		return "SCRIPT_TASK"
	case ElementServiceTask:
		return "SERVICE_TASK"
	case ElementSignalBoundaryEvent:
		return "SIGNAL_BOUNDARY_EVENT"
	case ElementSignalCatchEvent:
		return "SIGNAL_CATCH_EVENT"
	case ElementSignalStartEvent:
		return "SIGNAL_START_EVENT"
	case ElementSubProcess:
		return "SUB_PROCESS"
	case ElementTask:
		return "TASK"
	case ElementTerminateEndEvent:
		return "TERMINATE_END_EVENT"
	case ElementTimerBoundaryEvent:
		return "TIMER_BOUNDARY_EVENT"
	case ElementTimerCatchEvent:
		return "TIMER_CATCH_EVENT"
	case ElementTimerStartEvent:
		return "TIMER_START_EVENT"
	case ElementUserTask:
		return "USER_TASK"
	default:
		return "UNKNOWN"
	}
}

func (v *ElementType) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 {
		return fmt.Errorf("invalid element type data %s", s)
	}
	*v = MapElementType(s[1 : len(s)-1])
	return nil
}
