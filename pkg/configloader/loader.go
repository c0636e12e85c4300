// Package configloader reads application documents published by the form
// builder. Documents are JSON or YAML files holding an `applications` map
// keyed by application id.
package configloader

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/visibility"
)

// Store holds the loaded applications.
type Store struct {
	applications map[string]*model.Application
	sources      map[string]string
}

// LoadFS walks fsys and parses every JSON/YAML document. A nil fsys yields
// an empty store.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{
		applications: make(map[string]*model.Application),
		sources:      make(map[string]string),
	}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDocument(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("configloader: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for key, app := range doc.Applications {
			id := strings.TrimSpace(key)
			if id == "" {
				return fmt.Errorf("configloader: file %s defines an empty application id", path)
			}
			if prev, exists := store.sources[id]; exists {
				return fmt.Errorf("configloader: duplicate application %q (files %s and %s)", id, prev, path)
			}
			normalised, err := normaliseApplication(app, id, path)
			if err != nil {
				return err
			}
			store.applications[id] = normalised
			store.sources[id] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Application returns the application registered under id.
func (s *Store) Application(id string) (*model.Application, bool) {
	if s == nil {
		return nil, false
	}
	app, ok := s.applications[id]
	return app, ok
}

// IDs lists the application ids in lexical order.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.applications))
	for id := range s.applications {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Source reports the file an application was loaded from.
func (s *Store) Source(id string) string {
	if s == nil {
		return ""
	}
	return s.sources[id]
}

// Empty reports whether the store holds any application.
func (s *Store) Empty() bool {
	return s == nil || len(s.applications) == 0
}

type documentFile struct {
	Applications map[string]model.Application `json:"applications" yaml:"applications"`
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("configloader: file %s is empty", source)
	}

	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	doc = documentFile{}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	return documentFile{}, fmt.Errorf("configloader: parse %s: invalid JSON or YAML", source)
}

func normaliseApplication(app model.Application, id, source string) (*model.Application, error) {
	if app.ID == "" {
		app.ID = id
	}
	if app.ID != id {
		return nil, fmt.Errorf("configloader: application %q (file %s) declares mismatched id %q", id, source, app.ID)
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("configloader: application %q (file %s): %s", id, source, fmt.Sprintf(format, args...))
	}

	fields := make(map[string]struct{}, len(app.Fields))
	for idx, field := range app.Fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return nil, fail("field at index %d has no name", idx)
		}
		if _, dup := fields[name]; dup {
			return nil, fail("duplicate field name %q", name)
		}
		if !field.Type.IsKnown() {
			return nil, fail("field %q has unknown type %q", name, field.Type)
		}
		fields[name] = struct{}{}
		app.Fields[idx].Name = name
	}

	steps := make(map[string]struct{}, len(app.Wizard.Steps))
	for _, step := range app.Wizard.Steps {
		stepID := strings.TrimSpace(step.ID)
		if stepID == "" {
			return nil, fail("step with sequence %d has no id", step.Sequence)
		}
		if stepID == visibility.SingleStepID {
			return nil, fail("step id %q is reserved", stepID)
		}
		if _, dup := steps[stepID]; dup {
			return nil, fail("duplicate step id %q", stepID)
		}
		if !step.Type.IsKnown() {
			return nil, fail("step %q has unknown type %q", stepID, step.Type)
		}
		if err := checkStepConfig(step); err != nil {
			return nil, fail("step %q: %v", stepID, err)
		}
		if err := checkConditions(step.Conditions, fields); err != nil {
			return nil, fail("step %q: %v", stepID, err)
		}
		steps[stepID] = struct{}{}
	}

	for _, field := range app.Fields {
		if err := checkConditions(field.Conditions, fields); err != nil {
			return nil, fail("field %q: %v", field.Name, err)
		}
		if !app.Wizard.Enabled || field.StepID == "" {
			continue
		}
		if _, ok := steps[field.StepID]; !ok {
			return nil, fail("field %q references unknown step %q", field.Name, field.StepID)
		}
	}

	if pp := app.Pricing.PartialPayment; pp != nil {
		switch pp.Type {
		case model.PartialPaymentFixed, model.PartialPaymentPercentage:
		default:
			return nil, fail("unknown partial payment type %q", pp.Type)
		}
	}

	app.Wizard.Steps = visibility.SortedSteps(app.Wizard)
	return &app, nil
}

func checkStepConfig(step model.StepDefinition) error {
	switch step.Type {
	case model.StepTypeSendEmail:
		if step.Email == nil || strings.TrimSpace(step.Email.To) == "" {
			return fmt.Errorf("send_email steps need emailConfig.to")
		}
	case model.StepTypeDecisionPreview:
		if step.DecisionPreview == nil || strings.TrimSpace(step.DecisionPreview.Endpoint) == "" {
			return fmt.Errorf("decision_preview steps need decisionPreviewConfig.endpoint")
		}
	}
	return nil
}

func checkConditions(conds []model.Condition, fields map[string]struct{}) error {
	for idx, cond := range conds {
		if cond.FieldName == "" {
			continue
		}
		switch cond.Operator {
		case model.OperatorEquals, model.OperatorNotEquals, model.OperatorContains,
			model.OperatorNotEmpty, model.OperatorIsEmpty:
		default:
			return fmt.Errorf("condition %d has unknown operator %q", idx, cond.Operator)
		}
		if _, ok := fields[cond.FieldName]; !ok {
			return fmt.Errorf("condition %d references unknown field %q", idx, cond.FieldName)
		}
	}
	return nil
}

func isDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
