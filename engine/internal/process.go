package internal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
	"github.com/jackc/pgx/v5"
)

func NewProcessCache() *ProcessCache {
	return &ProcessCache{
		graphs: make(map[int32]*ProcessGraph),
	}
}

// ProcessCache caches the graphs of deployed process definitions, which are immutable.
type ProcessCache struct {
	mutex  sync.RWMutex
	graphs map[int32]*ProcessGraph
}

func (c *ProcessCache) Add(graph *ProcessGraph) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.graphs[graph.ProcessDefinitionId] = graph
}

func (c *ProcessCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	clear(c.graphs)
}

func (c *ProcessCache) Get(processDefinitionId int32) (*ProcessGraph, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	graph, ok := c.graphs[processDefinitionId]
	return graph, ok
}

func (c *ProcessCache) GetOrCache(ctx Context, processDefinitionId int32) (*ProcessGraph, error) {
	if graph, ok := c.Get(processDefinitionId); ok {
		return graph, nil
	}

	processDefinition, err := ctx.ProcessDefinitions().Select(processDefinitionId)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to select process definition %d: %v", processDefinitionId, err)
	}
	if err != nil {
		return nil, err
	}

	deployment, err := ctx.Deployments().Select(processDefinition.DeploymentId)
	if err != nil {
		return nil, fmt.Errorf("failed to select deployment of process definition %s: %v", processDefinition, err)
	}

	bpmnModel, err := model.New(strings.NewReader(deployment.BpmnXml))
	if err != nil {
		return nil, fmt.Errorf("failed to cache process definition %s: %v", processDefinition, err)
	}

	process := bpmnModel.ProcessById(processDefinition.Key)
	if process == nil {
		return nil, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to cache process definition",
			Detail: fmt.Sprintf("BPMN model has no process %s", processDefinition.Key),
		}
	}

	graph := newProcessGraph(processDefinition.Id, process)
	c.Add(graph)
	return graph, nil
}

func (c *ProcessCache) Remove(processDefinitionId int32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.graphs, processDefinitionId)
}

func newProcessGraph(processDefinitionId int32, process *model.Element) *ProcessGraph {
	graph := ProcessGraph{
		ProcessDefinitionId: processDefinitionId,
		Process:             process,

		elements: make(map[string]*model.Element),
		upstream: make(map[string]map[string]bool),
	}

	for _, element := range process.AllElements() {
		graph.elements[element.Id] = element

		if element.Type == model.ElementInclusiveGateway {
			graph.upstream[element.Id] = upstreamElements(element)
		}
	}

	return &graph
}

// ProcessGraph is the element graph of a process definition.
type ProcessGraph struct {
	ProcessDefinitionId int32
	Process             *model.Element

	elements map[string]*model.Element
	upstream map[string]map[string]bool // IDs of elements, from which an inclusive gateway can be reached
}

func (g *ProcessGraph) element(bpmnElementId string) (*model.Element, error) {
	element, ok := g.elements[bpmnElementId]
	if !ok {
		return nil, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to find BPMN element",
			Detail: fmt.Sprintf("process definition %d has no BPMN element %s", g.ProcessDefinitionId, bpmnElementId),
		}
	}
	return element, nil
}

// canReach determines if a token, positioned at the given element, can reach the inclusive gateway.
func (g *ProcessGraph) canReach(bpmnElementId string, gateway *model.Element) bool {
	return g.upstream[gateway.Id][bpmnElementId]
}

// noneStartEvent returns the none start event of a process or sub process or nil.
func noneStartEvent(scope *model.Element) *model.Element {
	startEvents := scope.ChildrenByType(model.ElementNoneStartEvent)
	if len(startEvents) == 0 {
		return nil
	}
	return startEvents[0]
}

// upstreamElements walks backward from the gateway breadth first, while every element is visited at most once.
// An activity is upstream, if one of its boundary events is.
func upstreamElements(gateway *model.Element) map[string]bool {
	visited := make(map[string]bool)

	var queue []*model.Element
	enqueue := func(element *model.Element) {
		if element == nil || visited[element.Id] {
			return
		}
		visited[element.Id] = true
		queue = append(queue, element)
	}

	for _, incoming := range gateway.Incoming {
		enqueue(incoming.Source)
	}

	for i := 0; i < len(queue); i++ {
		curr := queue[i]

		if boundaryEvent, ok := curr.Model.(model.BoundaryEvent); ok {
			enqueue(boundaryEvent.AttachedTo)
		}
		for _, incoming := range curr.Incoming {
			enqueue(incoming.Source)
		}
	}

	return visited
}

func validateProcess(process *model.Element) []engine.ErrorCause {
	var causes []engine.ErrorCause

	addCause := func(element *model.Element, causeType string, detail string) {
		causes = append(causes, engine.ErrorCause{
			Pointer: elementPointer(element),
			Type:    causeType,
			Detail:  detail,
		})
	}

	hasStartEvent := false
	for _, element := range process.Children {
		if element.Type.IsStartEvent() {
			hasStartEvent = true
			break
		}
	}
	if !hasStartEvent {
		addCause(process, "start_event", "process has no start event")
	}

	for _, element := range process.AllElements() {
		if element.Type == 0 {
			addCause(element, "event_definition", "event has no or an unsupported event definition")
			continue
		}

		if eventDefinition, ok := element.EventDefinition(); ok {
			switch {
			case eventDefinition.Timer != nil:
				if err := validateTimer(*eventDefinition.Timer); err != nil {
					addCause(element, "timer", err.Error())
				}
			case element.Type == model.ElementMessageBoundaryEvent || element.Type == model.ElementMessageCatchEvent || element.Type == model.ElementMessageStartEvent:
				if eventDefinition.MessageName == "" {
					addCause(element, "message", "message event has no message reference")
				}
			case element.Type == model.ElementSignalBoundaryEvent || element.Type == model.ElementSignalCatchEvent || element.Type == model.ElementSignalStartEvent:
				if eventDefinition.SignalName == "" {
					addCause(element, "signal", "signal event has no signal reference")
				}
			}
		}

		switch element.Type {
		case model.ElementEventBasedGateway:
			for _, outgoing := range element.Outgoing {
				if outgoing.Target == nil {
					continue
				}
				switch outgoing.Target.Type {
				case
					model.ElementMessageCatchEvent,
					model.ElementReceiveTask,
					model.ElementSignalCatchEvent,
					model.ElementTimerCatchEvent:
				default:
					addCause(element, "event_based_gateway", fmt.Sprintf("sequence flow %s must target a catch event or a receive task", outgoing.Id))
				}
			}
		case model.ElementServiceTask:
			if element.Model.(model.ServiceTask).Implementation == "" {
				addCause(element, "service_task", "service task has no implementation")
			}
		case model.ElementSubProcess:
			if noneStartEvent(element) == nil {
				addCause(element, "sub_process", "sub process has no none start event")
			}
		}

		if boundaryEvent, ok := element.Model.(model.BoundaryEvent); ok && boundaryEvent.AttachedTo == nil {
			addCause(element, "boundary_event", "boundary event is not attached to an activity")
		}
	}

	return causes
}

// validateSequenceFlows returns a cause for every sequence flow, which references an unknown or unsupported element.
func validateSequenceFlows(sequenceFlows []*model.SequenceFlow) []engine.ErrorCause {
	var causes []engine.ErrorCause
	for _, sequenceFlow := range sequenceFlows {
		if sequenceFlow.Source != nil && sequenceFlow.Target != nil {
			continue
		}

		causes = append(causes, engine.ErrorCause{
			Pointer: "/" + sequenceFlow.Id,
			Type:    "sequence_flow",
			Detail:  "sequence flow references an unknown or unsupported element",
		})
	}
	return causes
}

func validateTimer(timer model.Timer) error {
	if timer.Expression == "" {
		return fmt.Errorf("timer has no %s expression", strings.ToLower(timer.Kind.String()))
	}

	switch timer.Kind {
	case model.TimerCycle:
		cycle, err := engine.ParseCycle(timer.Expression)
		if err != nil {
			return err
		}
		if cycle.IsExhausted() {
			return fmt.Errorf("cycle %s has no repetitions", timer.Expression)
		}
	case model.TimerDate:
		if _, err := time.Parse(time.RFC3339, timer.Expression); err != nil {
			return fmt.Errorf("invalid time date %s: %v", timer.Expression, err)
		}
	case model.TimerDuration:
		duration, err := engine.NewISO8601Duration(timer.Expression)
		if err != nil {
			return err
		}
		if duration.IsZero() {
			return fmt.Errorf("invalid time duration %s", timer.Expression)
		}
	}

	if timer.EndDate != "" {
		if _, err := time.Parse(time.RFC3339, timer.EndDate); err != nil {
			return fmt.Errorf("invalid end date %s: %v", timer.EndDate, err)
		}
	}

	return nil
}
