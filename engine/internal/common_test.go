package internal

import (
	"os"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/model"
)

func mustCreateProcess(t *testing.T, fileName string, processId string) *model.Element {
	fileName = "../../test/bpmn/" + fileName

	bpmnFile, err := os.Open(fileName)
	if err != nil {
		t.Fatalf("failed to open BPMN file %s: %v", fileName, err)
	}

	defer bpmnFile.Close()

	bpmnModel, err := model.New(bpmnFile)
	if err != nil {
		t.Fatalf("failed to parse BPMN XML: %v", err)
	}

	process := bpmnModel.ProcessById(processId)
	if process == nil {
		t.Fatalf("BPMN file %s has no process %s", fileName, processId)
	}

	return process
}

func mustCreateGraph(t *testing.T, fileName string, processId string) *ProcessGraph {
	return newProcessGraph(1, mustCreateProcess(t, fileName, processId))
}
