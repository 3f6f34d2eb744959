package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// AppDefinition is the declarative schema for one simulated app.
// JSON field names are camelCase to match persisted definitions.
type AppDefinition struct {
	AppID         string             `json:"appId"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Category      string             `json:"category,omitempty"`
	Actions       []ActionDefinition `json:"actions"`
	StateSchema   []StateFieldDef    `json:"stateSchema,omitempty"`
	InitialConfig IRObject           `json:"initialConfig,omitempty"`
}

// Action returns the action with the given name.
func (d *AppDefinition) Action(name string) (*ActionDefinition, bool) {
	for i := range d.Actions {
		if d.Actions[i].Name == name {
			return &d.Actions[i], true
		}
	}
	return nil, false
}

// ToObject converts the definition to its JSON document form.
func (d *AppDefinition) ToObject() (IRObject, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("definition encoded as %s, want object", KindOf(v))
	}
	return obj, nil
}

// ParseAppDefinition decodes an app definition from JSON.
func ParseAppDefinition(data []byte) (*AppDefinition, error) {
	var def AppDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse app definition: %w", err)
	}
	return &def, nil
}

// ActionDefinition describes one callable action: its parameters and the
// ordered logic program run when it is invoked.
type ActionDefinition struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Parameters  map[string]ParamSpec `json:"parameters"`
	Logic       []LogicBlock         `json:"logic"`
}

// ParamNames returns the declared parameter names in sorted order.
func (a *ActionDefinition) ParamNames() []string {
	names := make([]string, 0, len(a.Parameters))
	for name := range a.Parameters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// UnmarshalJSON implements json.Unmarshaler for ActionDefinition.
func (a *ActionDefinition) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name        string               `json:"name"`
		Description string               `json:"description"`
		Parameters  map[string]ParamSpec `json:"parameters"`
		Logic       []json.RawMessage    `json:"logic"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	logic, err := UnmarshalBlocks(wire.Logic)
	if err != nil {
		return fmt.Errorf("action %q: %w", wire.Name, err)
	}
	*a = ActionDefinition{
		Name:        wire.Name,
		Description: wire.Description,
		Parameters:  wire.Parameters,
		Logic:       logic,
	}
	return nil
}

// ParamSpec declares the type and constraints of one action parameter.
type ParamSpec struct {
	Type        Kind     `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Default     IRValue  `json:"default,omitempty"`
	MinValue    *float64 `json:"minValue,omitempty"`
	MaxValue    *float64 `json:"maxValue,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
	Description string   `json:"description,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for ParamSpec.
// A null default is the same as no default.
func (p *ParamSpec) UnmarshalJSON(data []byte) error {
	type plain ParamSpec
	var wire struct {
		plain
		Default json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = ParamSpec(wire.plain)
	p.Default = nil
	if len(wire.Default) > 0 {
		v, err := unmarshalIRValue(wire.Default)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		if !IsNull(v) {
			p.Default = v
		}
	}
	return nil
}

// StateFieldDef declares one state field. PerAgent fields are created in
// every agent's namespace; the rest live in the shared namespace.
type StateFieldDef struct {
	Name        string  `json:"name"`
	Type        Kind    `json:"type"`
	Default     IRValue `json:"default,omitempty"`
	PerAgent    bool    `json:"perAgent"`
	Description string  `json:"description,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for StateFieldDef.
func (f *StateFieldDef) UnmarshalJSON(data []byte) error {
	type plain StateFieldDef
	var wire struct {
		plain
		Default json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*f = StateFieldDef(wire.plain)
	f.Default = nil
	if len(wire.Default) > 0 {
		v, err := unmarshalIRValue(wire.Default)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		f.Default = v
	}
	return nil
}

// InitialValue returns a fresh copy of the field's starting value: the
// declared default, or the zero value of the declared type.
func (f StateFieldDef) InitialValue() IRValue {
	if f.Default != nil {
		return DeepCopy(f.Default)
	}
	return ZeroValue(f.Type)
}

// ValidParamTypes defines allowed parameter types.
var ValidParamTypes = map[Kind]bool{
	KindString:  true,
	KindNumber:  true,
	KindBoolean: true,
	KindArray:   true,
	KindObject:  true,
}

// ValidStateTypes defines allowed state field types. "any" fields accept
// values of every kind and start as null.
var ValidStateTypes = map[Kind]bool{
	KindString:  true,
	KindNumber:  true,
	KindBoolean: true,
	KindArray:   true,
	KindObject:  true,
	KindAny:     true,
}

// KindAny is accepted only as a state field type.
const KindAny Kind = "any"

// ZeroValue returns the zero value for a declared type.
func ZeroValue(k Kind) IRValue {
	switch k {
	case KindString:
		return IRString("")
	case KindNumber:
		return IRNumber(0)
	case KindBoolean:
		return IRBool(false)
	case KindArray:
		return IRArray{}
	case KindObject:
		return IRObject{}
	default:
		return IRNull{}
	}
}
