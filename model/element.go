package model

type Element struct {
	Id   string
	Name string
	Type ElementType

	Parent   *Element
	Incoming []*SequenceFlow
	Outgoing []*SequenceFlow

	// Boundary events, attached to a task or sub process.
	BoundaryEvents []*Element
	// Children of a process or sub process.
	Children []*Element

	// Async marks an activity, which is continued by a job instead of the calling command.
	Async bool

	Model any
}

// AllElements returns the element itself and all of its descendants, breadth first.
func (e *Element) AllElements() []*Element {
	all := []*Element{e}

	i := 0
	for i < len(all) {
		all = append(all, all[i].Children...)
		i++
	}

	return all
}

func (e *Element) ChildById(id string) *Element {
	for i := 0; i < len(e.Children); i++ {
		if e.Children[i].Id == id {
			return e.Children[i]
		}
	}
	return nil
}

func (e *Element) ChildrenByType(elementType ElementType) []*Element {
	var elements []*Element
	for i := 0; i < len(e.Children); i++ {
		if e.Children[i].Type == elementType {
			elements = append(elements, e.Children[i])
		}
	}
	return elements
}

// EventDefinition returns the event definition of a start, catch or boundary event.
func (e *Element) EventDefinition() (EventDefinition, bool) {
	switch model := e.Model.(type) {
	case EventDefinition:
		return model, true
	case BoundaryEvent:
		return model.EventDefinition, true
	default:
		return EventDefinition{}, false
	}
}

// OutgoingById returns the outgoing sequence flow with the given ID, or nil.
func (e *Element) OutgoingById(id string) *SequenceFlow {
	for i := 0; i < len(e.Outgoing); i++ {
		if e.Outgoing[i].Id == id {
			return e.Outgoing[i]
		}
	}
	return nil
}

// Scope returns the process or sub process, containing the element.
func (e *Element) Scope() *Element {
	return e.Parent
}

type SequenceFlow struct {
	Id        string
	Source    *Element
	Target    *Element
	Condition string // Optional condition expression.
}

func (f *SequenceFlow) HasCondition() bool {
	return f.Condition != ""
}

// IsDefault reports whether the flow is the default flow of its source gateway or activity.
func (f *SequenceFlow) IsDefault() bool {
	if f.Source == nil {
		return false
	}

	switch model := f.Source.Model.(type) {
	case Gateway:
		return model.Default == f.Id
	case Activity:
		return model.Default == f.Id
	default:
		return false
	}
}

// element specific models

type Activity struct {
	Default string // ID of the default sequence flow.
}

type BoundaryEvent struct {
	AttachedTo      *Element
	CancelActivity  bool
	EventDefinition EventDefinition
}

type EventDefinition struct {
	MessageName string
	SignalName  string
	Timer       *Timer
}

type Gateway struct {
	Default string // ID of the default sequence flow.
}

type Process struct {
	IsExecutable bool
}

type ReceiveTask struct {
	Activity
	MessageName string
}

type ServiceTask struct {
	Activity
	Implementation string // Name of the handler, which executes the task.
}

type TimerKind int

const (
	TimerCycle TimerKind = iota + 1
	TimerDate
	TimerDuration
)

func (v TimerKind) String() string {
	switch v {
	case TimerCycle:
		return "CYCLE"
	case TimerDate:
		return "DATE"
	case TimerDuration:
		return "DURATION"
	default:
		return "UNKNOWN"
	}
}

type Timer struct {
	Kind       TimerKind
	Expression string
	EndDate    string // Optional end of a cycle, as RFC 3339 date.
}
