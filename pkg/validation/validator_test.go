package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/goliatone/go-formwizard/pkg/model"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		field model.FieldDefinition
		data  model.FormData
		want  string
	}{
		{
			name:  "required missing",
			field: model.FieldDefinition{Name: "country", Label: "Country", Type: model.FieldTypeText, Required: true},
			data:  model.FormData{},
			want:  "Country is required",
		},
		{
			name:  "required empty string",
			field: model.FieldDefinition{Name: "country", Type: model.FieldTypeText, Required: true},
			data:  model.FormData{"country": ""},
			want:  "country is required",
		},
		{
			name:  "required checkbox false",
			field: model.FieldDefinition{Name: "ok", Label: "Consent", Type: model.FieldTypeCheckbox, Required: true},
			data:  model.FormData{"ok": false},
			want:  "Consent is required",
		},
		{
			name:  "terms not accepted",
			field: model.FieldDefinition{Name: "terms", Label: "the terms", Type: model.FieldTypeTermsAgreement, Required: true},
			data:  model.FormData{"terms": false},
			want:  "You must accept the terms",
		},
		{
			name:  "static content never validated",
			field: model.FieldDefinition{Name: "intro", Type: model.FieldTypeHTMLContent, Required: true},
			data:  model.FormData{},
		},
		{
			name:  "min length",
			field: model.FieldDefinition{Name: "bio", Label: "Bio", Type: model.FieldTypeTextarea, Validation: model.Validation{MinLength: intPtr(5)}},
			data:  model.FormData{"bio": "abc"},
			want:  "Bio must be at least 5 characters",
		},
		{
			name:  "max length",
			field: model.FieldDefinition{Name: "bio", Label: "Bio", Type: model.FieldTypeTextarea, Validation: model.Validation{MaxLength: intPtr(2)}},
			data:  model.FormData{"bio": "abc"},
			want:  "Bio must be at most 2 characters",
		},
		{
			name:  "optional empty exempt from length",
			field: model.FieldDefinition{Name: "bio", Type: model.FieldTypeTextarea, Validation: model.Validation{MinLength: intPtr(5)}},
			data:  model.FormData{"bio": ""},
		},
		{
			name:  "number below min",
			field: model.FieldDefinition{Name: "booths", Label: "Booths", Type: model.FieldTypeNumber, Validation: model.Validation{Min: floatPtr(1)}},
			data:  model.FormData{"booths": "0"},
			want:  "Booths must be at least 1",
		},
		{
			name:  "number above max",
			field: model.FieldDefinition{Name: "booths", Label: "Booths", Type: model.FieldTypeNumber, Validation: model.Validation{Max: floatPtr(2.5)}},
			data:  model.FormData{"booths": "3"},
			want:  "Booths must be at most 2.5",
		},
		{
			name:  "non numeric exempt from range",
			field: model.FieldDefinition{Name: "booths", Type: model.FieldTypeNumber, Validation: model.Validation{Min: floatPtr(1)}},
			data:  model.FormData{"booths": "many"},
		},
		{
			name:  "range ignored for text fields",
			field: model.FieldDefinition{Name: "code", Type: model.FieldTypeText, Validation: model.Validation{Min: floatPtr(10)}},
			data:  model.FormData{"code": "3"},
		},
		{
			name: "required wins over length",
			field: model.FieldDefinition{Name: "bio", Label: "Bio", Type: model.FieldTypeText, Required: true,
				Validation: model.Validation{MinLength: intPtr(5)}},
			data: model.FormData{"bio": ""},
			want: "Bio is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(tc.field, tc.data); got != tc.want {
				t.Fatalf("Validate() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRevalidate_OnlyTouchedOrErroring(t *testing.T) {
	fields := []model.FieldDefinition{
		{Name: "name", Label: "Name", Type: model.FieldTypeText, Required: true},
		{Name: "email", Label: "Email", Type: model.FieldTypeEmail, Required: true},
		{Name: "phone", Label: "Phone", Type: model.FieldTypePhone, Required: true},
	}
	data := model.FormData{"email": "a@example.com"}
	touched := map[string]bool{"name": true}
	errs := map[string]string{"email": "Email is required"}

	got := Revalidate(fields, data, touched, errs)
	want := map[string]string{"name": "Name is required"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if _, ok := errs["email"]; !ok {
		t.Fatalf("input error map must not be mutated")
	}
}

func TestValidateAll_ReportsFirstInvalid(t *testing.T) {
	fields := []model.FieldDefinition{
		{Name: "intro", Type: model.FieldTypeReadonlyText},
		{Name: "first", Type: model.FieldTypeText},
		{Name: "country", Label: "Country", Type: model.FieldTypeSelect, Required: true},
		{Name: "city", Label: "City", Type: model.FieldTypeText, Required: true},
	}
	errs, first := ValidateAll(fields, model.FormData{})
	if first != "country" {
		t.Fatalf("expected first invalid field country, got %q", first)
	}
	if len(errs) != 2 {
		t.Fatalf("expected two errors, got %#v", errs)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("same inputs give the same message", prop.ForAll(
		func(value string, required bool, minLen int) bool {
			field := model.FieldDefinition{
				Name:       "f",
				Type:       model.FieldTypeNumber,
				Required:   required,
				Validation: model.Validation{MinLength: intPtr(minLen), Min: floatPtr(3)},
			}
			data := model.FormData{"f": value}
			return Validate(field, data) == Validate(field, data)
		},
		gen.OneConstOf("", "1", "10", "abc", "4.5"),
		gen.Bool(),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
