package engine

import (
	"fmt"
	"strings"
)

// A ConditionEvaluator evaluates the condition expression of a sequence flow, using the variables of a process instance.
type ConditionEvaluator interface {
	Evaluate(condition string, variables map[string]any) (bool, error)
}

// ConditionEvaluatorFunc is an adapter to allow the use of an ordinary function as [ConditionEvaluator].
type ConditionEvaluatorFunc func(string, map[string]any) (bool, error)

func (f ConditionEvaluatorFunc) Evaluate(condition string, variables map[string]any) (bool, error) {
	return f(condition, variables)
}

// NewVariableConditionEvaluator returns the default evaluator, which supports the literals true and false
// as well as the references ${name} and ${!name}. A referenced variable is true, if its value is the boolean
// true or the string "true". A missing variable is false.
func NewVariableConditionEvaluator() ConditionEvaluator {
	return ConditionEvaluatorFunc(evaluateVariableCondition)
}

func evaluateVariableCondition(condition string, variables map[string]any) (bool, error) {
	condition = strings.TrimSpace(condition)

	switch condition {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	if !strings.HasPrefix(condition, "${") || !strings.HasSuffix(condition, "}") {
		return false, fmt.Errorf("unsupported condition %s", condition)
	}

	name := strings.TrimSpace(condition[2 : len(condition)-1])

	negate := strings.HasPrefix(name, "!")
	if negate {
		name = strings.TrimSpace(name[1:])
	}
	if name == "" {
		return false, fmt.Errorf("condition %s has no variable name", condition)
	}

	var value bool
	switch v := variables[name].(type) {
	case bool:
		value = v
	case string:
		value = v == "true"
	}

	return value != negate, nil
}
