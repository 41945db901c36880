package model

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// New reads BPMN 2.0 XML and returns the contained processes as element graphs.
func New(bpmnXmlReader io.Reader) (*Model, error) {
	var (
		definitions       Definitions
		definitionsParsed bool

		elements      []*Element
		sequenceFlows []*SequenceFlow

		scopes  []*Element // stack of process and sub process elements
		element *Element   // element, which is currently parsed

		sequenceFlow *SequenceFlow // sequence flow, which is currently parsed
		sequenceRefs = make(map[*SequenceFlow][2]string)

		timerEventDefinition *Timer

		text      strings.Builder
		textOwner string // local name of the element, whose character data is collected
	)

	scope := func() *Element {
		if len(scopes) == 0 {
			return nil
		}
		return scopes[len(scopes)-1]
	}

	addNewElement := func(elementType ElementType, attributes []xml.Attr) {
		element = newElement(elementType, attributes)
		element.Parent = scope()
		if element.Parent != nil {
			element.Parent.Children = append(element.Parent.Children, element)
		}

		elements = append(elements, element)
	}

	addNewActivity := func(elementType ElementType, attributes []xml.Attr) {
		addNewElement(elementType, attributes)
		element.Model = Activity{Default: getAttrValue(attributes, "default")}
	}

	decoder := xml.NewDecoder(bpmnXmlReader)

	count := 0
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			if count == 0 {
				return nil, errors.New("XML is empty")
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode XML: %v", err)
		}

		count++

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "boundaryEvent":
				cancelActivity, _ := strconv.ParseBool(getAttrValueWithDefault(t.Attr, "cancelActivity", "true"))

				addNewElement(0, t.Attr) // type is set by the event definition
				element.Model = BoundaryEvent{
					AttachedTo:     &Element{Id: getAttrValue(t.Attr, "attachedToRef")}, // placeholder
					CancelActivity: cancelActivity,
				}
			case "conditionExpression", "timeCycle", "timeDate", "timeDuration":
				text.Reset()
				textOwner = t.Name.Local

				if t.Name.Local == "timeCycle" && timerEventDefinition != nil {
					timerEventDefinition.EndDate = getAttrValue(t.Attr, "endDate")
				}
			case "definitions":
				definitions.Id = getAttrValue(t.Attr, "id")
				definitionsParsed = true
			case "endEvent":
				addNewElement(ElementNoneEndEvent, t.Attr)
			case "eventBasedGateway":
				addNewElement(ElementEventBasedGateway, t.Attr)
				element.Model = Gateway{}
			case "exclusiveGateway":
				addNewElement(ElementExclusiveGateway, t.Attr)
				element.Model = Gateway{Default: getAttrValue(t.Attr, "default")}
			case "inclusiveGateway":
				addNewElement(ElementInclusiveGateway, t.Attr)
				element.Model = Gateway{Default: getAttrValue(t.Attr, "default")}
			case "intermediateCatchEvent":
				addNewElement(0, t.Attr) // type is set by the event definition
			case "manualTask":
				addNewActivity(ElementManualTask, t.Attr)
			case "message":
				definitions.messageById(getAttrValue(t.Attr, "id")).Name = getAttrValue(t.Attr, "name")
			case "messageEventDefinition":
				if element == nil {
					continue
				}

				setEventDefinition(element, ElementMessageStartEvent, ElementMessageCatchEvent, ElementMessageBoundaryEvent, func(d *EventDefinition) {
					d.MessageName = getAttrValue(t.Attr, "messageRef")
				})
			case "parallelGateway":
				addNewElement(ElementParallelGateway, t.Attr)
				element.Model = Gateway{}
			case "process":
				isExecutable, _ := strconv.ParseBool(getAttrValue(t.Attr, "isExecutable"))

				addNewElement(ElementProcess, t.Attr)
				element.Model = Process{IsExecutable: isExecutable}

				scopes = append(scopes, element)
				definitions.Processes = append(definitions.Processes, element)
			case "receiveTask":
				addNewElement(ElementReceiveTask, t.Attr)
				element.Model = ReceiveTask{
					Activity:    Activity{Default: getAttrValue(t.Attr, "default")},
					MessageName: getAttrValue(t.Attr, "messageRef"),
				}
			case "scriptTask":
				addNewActivity(ElementScriptTask, t.Attr)
			case "sequenceFlow":
				sequenceFlow = &SequenceFlow{Id: getAttrValue(t.Attr, "id")}
				sequenceFlows = append(sequenceFlows, sequenceFlow)
				sequenceRefs[sequenceFlow] = [2]string{getAttrValue(t.Attr, "sourceRef"), getAttrValue(t.Attr, "targetRef")}
			case "serviceTask":
				addNewElement(ElementServiceTask, t.Attr)
				element.Model = ServiceTask{
					Activity:       Activity{Default: getAttrValue(t.Attr, "default")},
					Implementation: getAttrValue(t.Attr, "implementation"),
				}
			case "signal":
				definitions.signalById(getAttrValue(t.Attr, "id")).Name = getAttrValue(t.Attr, "name")
			case "signalEventDefinition":
				if element == nil {
					continue
				}

				setEventDefinition(element, ElementSignalStartEvent, ElementSignalCatchEvent, ElementSignalBoundaryEvent, func(d *EventDefinition) {
					d.SignalName = getAttrValue(t.Attr, "signalRef")
				})
			case "startEvent":
				addNewElement(ElementNoneStartEvent, t.Attr)
			case "subProcess":
				addNewActivity(ElementSubProcess, t.Attr)
				scopes = append(scopes, element)
			case "task":
				addNewActivity(ElementTask, t.Attr)
			case "terminateEventDefinition":
				if element != nil && element.Type == ElementNoneEndEvent {
					element.Type = ElementTerminateEndEvent
				}
			case "timerEventDefinition":
				if element == nil {
					continue
				}

				timerEventDefinition = &Timer{}
				setEventDefinition(element, ElementTimerStartEvent, ElementTimerCatchEvent, ElementTimerBoundaryEvent, func(d *EventDefinition) {
					d.Timer = timerEventDefinition
				})
			case "userTask":
				addNewActivity(ElementUserTask, t.Attr)
			}

			if element != nil && getAttrValue(t.Attr, "async") == "true" {
				element.Async = true
			}
		case xml.CharData:
			if textOwner != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "conditionExpression":
				if sequenceFlow != nil {
					sequenceFlow.Condition = strings.TrimSpace(text.String())
				}
				textOwner = ""
			case "timeCycle", "timeDate", "timeDuration":
				if timerEventDefinition != nil {
					timerEventDefinition.Expression = strings.TrimSpace(text.String())
					switch t.Name.Local {
					case "timeCycle":
						timerEventDefinition.Kind = TimerCycle
					case "timeDate":
						timerEventDefinition.Kind = TimerDate
					case "timeDuration":
						timerEventDefinition.Kind = TimerDuration
					}
				}
				textOwner = ""
			case "timerEventDefinition":
				timerEventDefinition = nil
			case "process", "subProcess":
				scopes = scopes[:len(scopes)-1]
				element = nil
			case "sequenceFlow":
				sequenceFlow = nil
			case
				"boundaryEvent",
				"endEvent",
				"eventBasedGateway",
				"exclusiveGateway",
				"inclusiveGateway",
				"intermediateCatchEvent",
				"manualTask",
				"parallelGateway",
				"receiveTask",
				"scriptTask",
				"serviceTask",
				"startEvent",
				"task",
				"userTask":
				element = nil
			}
		}
	}

	if !definitionsParsed {
		return nil, errors.New("no definitions found")
	}

	model := Model{
		Definitions: &definitions,

		Elements:      elements,
		SequenceFlows: sequenceFlows,
	}

	// resolve sequence flow references within the scope of the flow's source
	for _, sequenceFlow := range sequenceFlows {
		refs := sequenceRefs[sequenceFlow]

		if source := model.ElementById(refs[0]); source != nil {
			sequenceFlow.Source = source
			source.Outgoing = append(source.Outgoing, sequenceFlow)
		}
		if target := model.ElementById(refs[1]); target != nil {
			sequenceFlow.Target = target
			target.Incoming = append(target.Incoming, sequenceFlow)
		}
	}

	for _, element := range elements {
		switch m := element.Model.(type) {
		case BoundaryEvent:
			// resolve "attached to" placeholder
			attachedTo := model.ElementById(m.AttachedTo.Id)
			if attachedTo != nil {
				attachedTo.BoundaryEvents = append(attachedTo.BoundaryEvents, element)
			}

			m.AttachedTo = attachedTo
			m.EventDefinition = definitions.resolve(m.EventDefinition)
			element.Model = m
		case EventDefinition:
			element.Model = definitions.resolve(m)
		case ReceiveTask:
			if m.MessageName != "" {
				m.MessageName = definitions.messageById(m.MessageName).nameOrId()
				element.Model = m
			}
		}
	}

	return &model, nil
}

type Model struct {
	Definitions *Definitions

	Elements      []*Element
	SequenceFlows []*SequenceFlow
}

// ElementById returns the element with the given id, or nil, if no such element exists.
func (m *Model) ElementById(id string) *Element {
	for _, element := range m.Elements {
		if element.Id == id {
			return element
		}
	}
	return nil
}

// ElementsByProcessId returns all elements of a process, including the process element itself.
// If the process does not exist, nil is returned.
func (m *Model) ElementsByProcessId(processId string) []*Element {
	processElement := m.ProcessById(processId)
	if processElement == nil {
		return nil
	}
	return processElement.AllElements()
}

// ElementsByType returns all elements of the given type.
func (m *Model) ElementsByType(elementType ElementType) []*Element {
	var elements []*Element
	for _, element := range m.Elements {
		if element.Type == elementType {
			elements = append(elements, element)
		}
	}
	return elements
}

// ProcessById returns the process with the given id, or nil, if no such process exists.
func (m *Model) ProcessById(id string) *Element {
	for i := range m.Definitions.Processes {
		if m.Definitions.Processes[i].Id == id {
			return m.Definitions.Processes[i]
		}
	}
	return nil
}

type Definitions struct {
	Id string

	Messages  []*Message
	Processes []*Element
	Signals   []*Signal
}

func (d *Definitions) messageById(id string) *Message {
	for _, message := range d.Messages {
		if message.Id == id {
			return message
		}
	}

	message := &Message{Id: id}
	d.Messages = append(d.Messages, message)
	return message
}

// resolve replaces signal and message references by their names.
func (d *Definitions) resolve(eventDefinition EventDefinition) EventDefinition {
	if eventDefinition.MessageName != "" {
		eventDefinition.MessageName = d.messageById(eventDefinition.MessageName).nameOrId()
	}
	if eventDefinition.SignalName != "" {
		eventDefinition.SignalName = d.signalById(eventDefinition.SignalName).nameOrId()
	}
	return eventDefinition
}

func (d *Definitions) signalById(id string) *Signal {
	for _, signal := range d.Signals {
		if signal.Id == id {
			return signal
		}
	}

	signal := &Signal{Id: id}
	d.Signals = append(d.Signals, signal)
	return signal
}

type Message struct {
	Id   string
	Name string
}

func (m *Message) nameOrId() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Id
}

type Signal struct {
	Id   string
	Name string
}

func (s *Signal) nameOrId() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Id
}

func getAttrValue(attributes []xml.Attr, name string) string {
	for i := range attributes {
		if attributes[i].Name.Local == name {
			return attributes[i].Value
		}
	}
	return ""
}

func getAttrValueWithDefault(attributes []xml.Attr, name string, defaultValue string) string {
	if value := getAttrValue(attributes, name); value != "" {
		return value
	} else {
		return defaultValue
	}
}

func newElement(elementType ElementType, attributes []xml.Attr) *Element {
	return &Element{
		Id:   getAttrValue(attributes, "id"),
		Name: getAttrValue(attributes, "name"),
		Type: elementType,
	}
}

// setEventDefinition derives the element type from the kind of event, containing the definition.
func setEventDefinition(element *Element, startType ElementType, catchType ElementType, boundaryType ElementType, set func(*EventDefinition)) {
	switch model := element.Model.(type) {
	case BoundaryEvent:
		element.Type = boundaryType
		set(&model.EventDefinition)
		element.Model = model
		return
	}

	var eventDefinition EventDefinition
	if model, ok := element.Model.(EventDefinition); ok {
		eventDefinition = model
	}
	set(&eventDefinition)

	switch element.Type {
	case ElementNoneStartEvent:
		element.Type = startType
	case 0:
		element.Type = catchType
	}

	element.Model = eventDefinition
}
