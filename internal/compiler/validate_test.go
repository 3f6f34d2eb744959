package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
)

func ptrF(f float64) *float64 { return &f }
func ptrI(i int) *int         { return &i }

func validApp() *ir.AppDefinition {
	return &ir.AppDefinition{
		AppID: "tipjar",
		Name:  "Tip Jar",
		StateSchema: []ir.StateFieldDef{
			{Name: "tips", Type: ir.KindNumber, PerAgent: true},
			{Name: "total", Type: ir.KindNumber},
		},
		Actions: []ir.ActionDefinition{{
			Name: "tip",
			Parameters: map[string]ir.ParamSpec{
				"amount": {Type: ir.KindNumber, Required: true, MinValue: ptrF(1)},
			},
			Logic: []ir.LogicBlock{
				ir.UpdateBlock{Target: "shared.total", Operation: ir.OpAdd, Value: ir.IRString("params.amount")},
				ir.ReturnBlock{Value: ir.IRObject{"total": ir.IRString("shared.total")}},
			},
		}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateAppValid(t *testing.T) {
	assert.Empty(t, Validate(validApp()))
	assert.Empty(t, Validate(*validApp()), "value form is accepted")
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("nope")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateAppErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.AppDefinition)
		code   string
		field  string
	}{
		{"bad app id", func(d *ir.AppDefinition) { d.AppID = "Tip-Jar" }, ErrInvalidAppID, "appId"},
		{"single char app id", func(d *ir.AppDefinition) { d.AppID = "t" }, ErrInvalidAppID, "appId"},
		{"empty name", func(d *ir.AppDefinition) { d.Name = "  " }, ErrAppNameEmpty, "name"},
		{"no actions", func(d *ir.AppDefinition) { d.Actions = nil }, ErrAppNoActions, "actions"},
		{"duplicate action", func(d *ir.AppDefinition) { d.Actions = append(d.Actions, d.Actions[0]) }, ErrDuplicateName, "actions[1].name"},
		{"bad action name", func(d *ir.AppDefinition) { d.Actions[0].Name = "tip now" }, ErrInvalidName, "actions[0].name"},
		{"bad param type", func(d *ir.AppDefinition) {
			d.Actions[0].Parameters["amount"] = ir.ParamSpec{Type: "integer"}
		}, ErrInvalidFieldType, "actions[0].parameters.amount.type"},
		{"default kind", func(d *ir.AppDefinition) {
			d.Actions[0].Parameters["amount"] = ir.ParamSpec{Type: ir.KindNumber, Default: ir.IRString("5")}
		}, ErrInvalidDefault, "actions[0].parameters.amount.default"},
		{"min above max", func(d *ir.AppDefinition) {
			d.Actions[0].Parameters["amount"] = ir.ParamSpec{Type: ir.KindNumber, MinValue: ptrF(10), MaxValue: ptrF(1)}
		}, ErrInvalidBound, "actions[0].parameters.amount"},
		{"length on number", func(d *ir.AppDefinition) {
			d.Actions[0].Parameters["amount"] = ir.ParamSpec{Type: ir.KindNumber, MaxLength: ptrI(3)}
		}, ErrInvalidBound, "actions[0].parameters.amount"},
		{"no logic", func(d *ir.AppDefinition) { d.Actions[0].Logic = nil }, ErrActionNoLogic, "actions[0].logic"},
		{"bad logic", func(d *ir.AppDefinition) {
			d.Actions[0].Logic = []ir.LogicBlock{ir.ValidateBlock{Condition: "amount > 0"}}
		}, ErrInvalidLogic, "actions[0].logic[0].condition"},
		{"duplicate state", func(d *ir.AppDefinition) {
			d.StateSchema = append(d.StateSchema, ir.StateFieldDef{Name: "total", Type: ir.KindNumber})
		}, ErrDuplicateName, "stateSchema[2].name"},
		{"bad state type", func(d *ir.AppDefinition) { d.StateSchema[0].Type = "map" }, ErrInvalidFieldType, "stateSchema[0].type"},
		{"state default kind", func(d *ir.AppDefinition) { d.StateSchema[0].Default = ir.IRBool(true) }, ErrInvalidDefault, "stateSchema[0].default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validApp()
			tt.mutate(def)
			errs := Validate(def)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)

			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateAnyStateAcceptsAnyDefault(t *testing.T) {
	def := validApp()
	def.StateSchema = append(def.StateSchema, ir.StateFieldDef{Name: "meta", Type: ir.KindAny, Default: ir.IRString("x")})
	assert.Empty(t, Validate(def))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	def := validApp()
	def.AppID = ""
	def.Name = ""
	def.Actions[0].Logic = []ir.LogicBlock{
		ir.ValidateBlock{Condition: "foo"},
		ir.UpdateBlock{Target: "params.x", Operation: ir.OpSet, Value: ir.IRNumber(1)},
	}

	errs := Validate(def)
	assert.Len(t, errs, 4)
	assert.Error(t, AsError(errs))
	assert.NoError(t, AsError(nil))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "name", Message: "name is required", Code: ErrAppNameEmpty}
	assert.Equal(t, "[E102] name: name is required", err.Error())

	err.Line = 7
	assert.Equal(t, "[E102] line 7: name: name is required", err.Error())
}
