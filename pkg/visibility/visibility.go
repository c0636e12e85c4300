// Package visibility decides which steps and fields of a wizard are shown for
// the current form data. Conditions are plain data interpreted by Evaluate;
// nothing is cached, so callers recompute after every mutation.
package visibility

import (
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Evaluate reports whether conditions hold for data under logic. An empty list
// always holds. LogicAny needs one satisfied condition; any other logic value
// (including the zero value) needs all of them.
func Evaluate(conditions []model.Condition, logic model.ConditionLogic, data model.FormData) bool {
	if len(conditions) == 0 {
		return true
	}

	if logic == model.LogicAny {
		for _, cond := range conditions {
			if evalCondition(cond, data) {
				return true
			}
		}
		return false
	}

	for _, cond := range conditions {
		if !evalCondition(cond, data) {
			return false
		}
	}
	return true
}

func evalCondition(cond model.Condition, data model.FormData) bool {
	name := strings.TrimSpace(cond.FieldName)
	if name == "" {
		return true
	}

	raw, present := data[name]
	got := model.Stringify(raw)

	switch cond.Operator {
	case model.OperatorEquals:
		return got == cond.Value
	case model.OperatorNotEquals:
		return got != cond.Value
	case model.OperatorContains:
		return strings.Contains(got, cond.Value)
	case model.OperatorNotEmpty:
		return present && !model.IsBlank(raw)
	case model.OperatorIsEmpty:
		return !present || model.IsBlank(raw)
	default:
		// Unknown operators come from configurations authored against a newer
		// builder; they do not hide anything.
		return true
	}
}
