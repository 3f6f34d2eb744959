package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func signupAction() *ir.ActionDefinition {
	return &ir.ActionDefinition{
		Name: "signup",
		Parameters: map[string]ir.ParamSpec{
			"name":  {Type: ir.KindString, Required: true, MinLength: intPtr(2), MaxLength: intPtr(5)},
			"age":   {Type: ir.KindNumber, MinValue: floatPtr(13), MaxValue: floatPtr(120)},
			"tags":  {Type: ir.KindArray, Default: ir.IRArray{ir.IRString("new")}},
			"admin": {Type: ir.KindBoolean, Default: ir.IRBool(false)},
			"prefs": {Type: ir.KindObject},
		},
	}
}

func TestCheckParams_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params ir.IRObject
		want   string
	}{
		{"unknown reported first", ir.IRObject{"zzz": ir.IRNumber(1), "aaa": ir.IRNumber(1)}, "Unknown parameter 'aaa' for action 'signup'"},
		{"missing required", ir.IRObject{}, "Missing required parameter 'name'"},
		{"explicit null is absent", ir.IRObject{"name": ir.IRNull{}}, "Missing required parameter 'name'"},
		{"wrong type", ir.IRObject{"name": ir.IRNumber(3)}, "Parameter 'name' must be of type string, got number"},
		{"too short", ir.IRObject{"name": ir.IRString("a")}, "Parameter 'name' must be at least 2 characters"},
		{"too long", ir.IRObject{"name": ir.IRString("abcdef")}, "Parameter 'name' must be at most 5 characters"},
		{"below min", ir.IRObject{"name": ir.IRString("ann"), "age": ir.IRNumber(12.5)}, "Parameter 'age' must be >= 13, got 12.5"},
		{"above max", ir.IRObject{"name": ir.IRString("ann"), "age": ir.IRNumber(121)}, "Parameter 'age' must be <= 120, got 121"},
		{"array type", ir.IRObject{"name": ir.IRString("ann"), "tags": ir.IRString("x")}, "Parameter 'tags' must be of type array, got string"},
		{"object type", ir.IRObject{"name": ir.IRString("ann"), "prefs": ir.IRArray{}}, "Parameter 'prefs' must be of type object, got array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkParams(signupAction(), tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var pe *ParamError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestCheckParams_LengthCountsRunes(t *testing.T) {
	_, err := checkParams(signupAction(), ir.IRObject{"name": ir.IRString("\u00e9\u00e9\u00e9\u00e9\u00e9")})
	assert.NoError(t, err, "five runes fit maxLength 5")
}

func TestCheckParams_Defaults(t *testing.T) {
	action := signupAction()
	got, err := checkParams(action, ir.IRObject{"name": ir.IRString("ann"), "admin": ir.IRNull{}})
	require.NoError(t, err)

	assert.Equal(t, ir.IRObject{
		"name":  ir.IRString("ann"),
		"tags":  ir.IRArray{ir.IRString("new")},
		"admin": ir.IRBool(false),
	}, got)

	got["tags"] = append(got["tags"].(ir.IRArray), ir.IRString("more"))
	assert.Len(t, action.Parameters["tags"].Default, 1, "defaults are copied")
}

func TestCheckParams_DoesNotAliasInput(t *testing.T) {
	in := ir.IRObject{"name": ir.IRString("ann"), "prefs": ir.IRObject{"dark": ir.IRBool(true)}}
	got, err := checkParams(signupAction(), in)
	require.NoError(t, err)

	got["prefs"].(ir.IRObject)["dark"] = ir.IRBool(false)
	assert.Equal(t, ir.IRBool(true), in["prefs"].(ir.IRObject)["dark"])
}

func TestValidateParams(t *testing.T) {
	a := newPayments(t)

	assert.NoError(t, a.ValidateParams("transfer", transfer("bob", 10)))
	assert.EqualError(t, a.ValidateParams("transfer", ir.IRObject{"to": ir.IRString("bob")}), "Missing required parameter 'amount'")

	err := a.ValidateParams("refund", nil)
	var ue *UnknownActionError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Unknown action: refund", err.Error())
}
