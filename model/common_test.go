package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// mustCreateModel parses a BPMN file of the test/bpmn directory.
func mustCreateModel(t *testing.T, fileName string) *Model {
	b, err := os.ReadFile(filepath.Join("..", "test", "bpmn", fileName))
	if err != nil {
		t.Fatalf("failed to read BPMN file %s: %v", fileName, err)
	}

	model, err := New(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("failed to parse BPMN file %s: %v", fileName, err)
	}

	return model
}

// mustGetElement returns an element of the model and asserts its type.
func mustGetElement(t *testing.T, model *Model, id string, elementType ElementType) *Element {
	element := model.ElementById(id)
	if element == nil {
		t.Fatalf("model has no element %s", id)
	}
	if element.Type != elementType {
		t.Fatalf("expected element %s to be of type %s, but is %s", id, elementType, element.Type)
	}
	return element
}
