package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface representing runtime values.
// Only IRNull, IRString, IRNumber, IRBool, IRArray, and IRObject implement this.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
// Using an explicit type ensures all IRValues satisfy the sealed interface.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRNumber represents a numeric value. All numbers are float64, matching JSON.
type IRNumber float64

func (IRNumber) irValue() {}

// MarshalJSON implements json.Marshaler for IRNumber.
// Integral values are written without a fraction so balances stay readable.
func (n IRNumber) MarshalJSON() ([]byte, error) {
	s, err := formatNumber(float64(n))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// Kind names the runtime kind of a value. The names double as the
// declared parameter and state field types.
type Kind string

const (
	KindNull    Kind = "null"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// KindOf returns the kind of v. A nil interface is reported as null.
func KindOf(v IRValue) Kind {
	switch v.(type) {
	case nil, IRNull:
		return KindNull
	case IRString:
		return KindString
	case IRNumber:
		return KindNumber
	case IRBool:
		return KindBoolean
	case IRArray:
		return KindArray
	case IRObject:
		return KindObject
	default:
		panic(fmt.Sprintf("unknown IRValue type: %T", v))
	}
}

// IsNull reports whether v is null (or a nil interface).
func IsNull(v IRValue) bool {
	return KindOf(v) == KindNull
}

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
// Example: NewIRObjectFromPairs(O("name", IRString("cart")), O("count", IRNumber(5)))
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// IRPair represents a key-value pair for IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair.
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for astral characters.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports structural equality. Numbers compare by value; values of
// different kinds are never equal. Null equals only null.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case nil, IRNull:
		return IsNull(b)
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRNumber:
		bv, ok := b.(IRNumber)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values of the same kind. Numbers and strings order
// naturally, booleans order false before true, and arrays order
// lexicographically. ok is false when the kinds are not comparable.
func Compare(a, b IRValue) (int, bool) {
	switch av := a.(type) {
	case IRNumber:
		bv, ok := b.(IRNumber)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case IRString:
		bv, ok := b.(IRString)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case IRBool:
		bv, ok := b.(IRBool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !bool(av):
			return -1, true
		}
		return 1, true
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok {
			return 0, false
		}
		for i := 0; i < len(av) && i < len(bv); i++ {
			c, ok := Compare(av[i], bv[i])
			if !ok {
				return 0, false
			}
			if c != 0 {
				return c, true
			}
		}
		switch {
		case len(av) < len(bv):
			return -1, true
		case len(av) > len(bv):
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// DeepCopy returns an independent copy of v. Arrays and objects are copied
// recursively so the result shares no mutable structure with v.
func DeepCopy(v IRValue) IRValue {
	switch val := v.(type) {
	case nil:
		return IRNull{}
	case IRArray:
		return val.Clone()
	case IRObject:
		return val.Clone()
	default:
		return val
	}
}

// Clone returns a deep copy of the array.
func (arr IRArray) Clone() IRArray {
	if arr == nil {
		return nil
	}
	out := make(IRArray, len(arr))
	for i, elem := range arr {
		out[i] = DeepCopy(elem)
	}
	return out
}

// Clone returns a deep copy of the object.
func (obj IRObject) Clone() IRObject {
	if obj == nil {
		return nil
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = DeepCopy(v)
	}
	return out
}

// Truthy reports the boolean interpretation of v: null, false, zero,
// the empty string and empty containers are falsy.
func Truthy(v IRValue) bool {
	switch val := v.(type) {
	case nil, IRNull:
		return false
	case IRBool:
		return bool(val)
	case IRNumber:
		return val != 0
	case IRString:
		return val != ""
	case IRArray:
		return len(val) > 0
	case IRObject:
		return len(val) > 0
	default:
		return false
	}
}

// Stringify renders v for template substitution. Strings are written
// verbatim, integral numbers without a fraction, and containers as
// canonical JSON.
func Stringify(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return "null"
	case IRString:
		return string(val)
	case IRNumber:
		s, err := formatNumber(float64(val))
		if err != nil {
			return strconv.FormatFloat(float64(val), 'g', -1, 64)
		}
		return s
	case IRBool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := MarshalCanonical(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// formatNumber renders a float64 the way ECMAScript Number#toString does
// for the common range: integral values have no fraction or exponent.
// NaN and infinities have no JSON representation.
func formatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("number %v has no JSON representation", f)
	}
	if f == 0 {
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// Go writes 1e+21 and 1e-07; ECMAScript writes 1e+21 and 1e-7.
	mant, exp, _ := bytes.Cut([]byte(s), []byte("e"))
	sign := exp[0]
	digits := bytes.TrimLeft(exp[1:], "0")
	return string(mant) + "e" + string(sign) + string(digits), nil
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(IRObject, len(raw))
	for k, v := range raw {
		val, err := unmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRObject key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(IRArray, len(raw))
	for i, v := range raw {
		val, err := unmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRArray index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// unmarshalIRValue decodes a JSON value into the appropriate IRValue type.
func unmarshalIRValue(data []byte) (IRValue, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return IRString(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return IRBool(b), nil

	case 'n':
		if string(data) != "null" {
			return nil, fmt.Errorf("invalid JSON value: %s", data)
		}
		return IRNull{}, nil

	case '[':
		var arr IRArray
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj IRObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("invalid JSON number %s: %w", data, err)
		}
		return IRNumber(f), nil
	}
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys (RFC 8785 ordering).
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing and snapshots.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	if obj == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRNumber:
		return val.MarshalJSON()
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		return val.MarshalJSON()
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// UnmarshalIRValue deserializes any JSON document into an IRValue.
// Trailing data after the first value is rejected.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}

	return FromGo(raw)
}

// FromGo converts a decoded Go value (as produced by encoding/json or
// yaml.v3) into an IRValue.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", val, err)
		}
		return IRNumber(f), nil
	case float64:
		return IRNumber(val), nil
	case float32:
		return IRNumber(val), nil
	case int:
		return IRNumber(val), nil
	case int64:
		return IRNumber(val), nil
	case uint64:
		return IRNumber(val), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
