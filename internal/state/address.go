package state

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/appsim/internal/ir"
)

// Namespace selects the root of an Address.
type Namespace int

const (
	// NamespaceAgent addresses one agent's per-agent object.
	NamespaceAgent Namespace = iota
	// NamespaceShared addresses the shared object.
	NamespaceShared
)

// Segment is one step of a path: an object key, or an array index when
// IsIndex is set.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns an object-key segment.
func Key(k string) Segment {
	return Segment{Key: k}
}

// Idx returns an array-index segment.
func Idx(i int) Segment {
	return Segment{Index: i, IsIndex: true}
}

// SegmentFromValue converts an evaluated subscript into a segment.
// Strings become keys and integral numbers become indexes.
func SegmentFromValue(v ir.IRValue) (Segment, error) {
	switch val := v.(type) {
	case ir.IRString:
		return Key(string(val)), nil
	case ir.IRNumber:
		f := float64(val)
		if f != math.Trunc(f) {
			return Segment{}, fmt.Errorf("array index must be an integer, got %v", f)
		}
		return Idx(int(f)), nil
	default:
		return Segment{}, fmt.Errorf("subscript must be string or number, got %s", ir.KindOf(v))
	}
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return "." + s.Key
}

// Address is a fully resolved state location.
type Address struct {
	Namespace Namespace
	Agent     string
	Path      []Segment
}

// AgentAddress addresses a path inside agent's namespace.
func AgentAddress(agent string, path ...Segment) Address {
	return Address{Namespace: NamespaceAgent, Agent: agent, Path: path}
}

// SharedAddress addresses a path inside the shared namespace.
func SharedAddress(path ...Segment) Address {
	return Address{Namespace: NamespaceShared, Path: path}
}

// String renders the address as agents["id"].a.b or shared.a[0].
func (a Address) String() string {
	var b strings.Builder
	if a.Namespace == NamespaceShared {
		b.WriteString("shared")
	} else {
		b.WriteString("agents[")
		b.WriteString(strconv.Quote(a.Agent))
		b.WriteString("]")
	}
	for _, seg := range a.Path {
		b.WriteString(seg.String())
	}
	return b.String()
}

// root returns the namespace object the address starts from.
func (s *AppState) root(addr Address) (ir.IRObject, error) {
	if addr.Namespace == NamespaceShared {
		if s.Shared == nil {
			s.Shared = ir.IRObject{}
		}
		return s.Shared, nil
	}
	obj, ok := s.PerAgent[addr.Agent]
	if !ok {
		return nil, &LookupError{AgentID: addr.Agent}
	}
	return obj, nil
}

// Get reads the value at addr. Missing keys, out-of-range indexes and
// steps through scalars yield null; only a missing agent is an error.
func (s *AppState) Get(addr Address) (ir.IRValue, error) {
	root, err := s.root(addr)
	if err != nil {
		return nil, err
	}
	var cur ir.IRValue = root
	for _, seg := range addr.Path {
		cur = step(cur, seg)
	}
	if cur == nil {
		return ir.IRNull{}, nil
	}
	return cur, nil
}

func step(cur ir.IRValue, seg Segment) ir.IRValue {
	switch c := cur.(type) {
	case ir.IRObject:
		if !seg.IsIndex {
			if v, ok := c[seg.Key]; ok && v != nil {
				return v
			}
		}
	case ir.IRArray:
		if seg.IsIndex {
			i := seg.Index
			if i < 0 {
				i += len(c)
			}
			if i >= 0 && i < len(c) && c[i] != nil {
				return c[i]
			}
		}
	}
	return ir.IRNull{}
}

// slot is a writable location: a key in an object or an index in an array.
type slot struct {
	obj   ir.IRObject
	arr   ir.IRArray
	key   string
	index int
}

func (sl slot) get() (ir.IRValue, bool) {
	if sl.obj != nil {
		v, ok := sl.obj[sl.key]
		return v, ok
	}
	return sl.arr[sl.index], true
}

func (sl slot) set(v ir.IRValue) {
	if sl.obj != nil {
		sl.obj[sl.key] = v
		return
	}
	sl.arr[sl.index] = v
}

// Apply performs op with value at addr, mutating s in place.
//
// Missing or null intermediate keys are created as empty objects. Set
// creates or overwrites the final key. Append creates an array when the
// final key is missing or null. Add and Subtract need an existing number.
// The stored value is a deep copy of value. A failed Apply leaves s
// unchanged.
func (s *AppState) Apply(addr Address, op ir.UpdateOp, value ir.IRValue) error {
	if len(addr.Path) == 0 {
		return &PathError{Code: PathInvalid, Path: addr.String(), Message: "cannot replace a whole namespace"}
	}
	root, err := s.root(addr)
	if err != nil {
		return err
	}

	// Dry run first so a failure cannot leave created parents behind.
	probe, err := resolveSlot(root, addr, false)
	if err != nil {
		return err
	}
	current, exists := probe.get()
	if current == nil {
		current = ir.IRNull{}
	}

	var next ir.IRValue
	switch op {
	case ir.OpSet:
		next = ir.DeepCopy(value)

	case ir.OpAdd, ir.OpSubtract:
		if !exists {
			return &PathError{Code: PathTypeMismatch, Path: addr.String(), Message: fmt.Sprintf("%s requires an existing number", op)}
		}
		cur, ok := current.(ir.IRNumber)
		if !ok {
			return &PathError{Code: PathTypeMismatch, Path: addr.String(), Message: fmt.Sprintf("%s requires a number target, got %s", op, ir.KindOf(current))}
		}
		delta, ok := value.(ir.IRNumber)
		if !ok {
			return &PathError{Code: PathTypeMismatch, Path: addr.String(), Message: fmt.Sprintf("%s requires a number value, got %s", op, ir.KindOf(value))}
		}
		if op == ir.OpSubtract {
			delta = -delta
		}
		sum := float64(cur + delta)
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			return &PathError{Code: PathOverflow, Path: addr.String(), Message: fmt.Sprintf("%s result is out of range", op)}
		}
		next = ir.IRNumber(sum)

	case ir.OpAppend:
		switch cur := current.(type) {
		case ir.IRNull:
			next = ir.IRArray{ir.DeepCopy(value)}
		case ir.IRArray:
			next = append(cur, ir.DeepCopy(value))
		default:
			return &PathError{Code: PathTypeMismatch, Path: addr.String(), Message: fmt.Sprintf("append requires an array target, got %s", ir.KindOf(current))}
		}

	default:
		return &PathError{Code: PathInvalid, Path: addr.String(), Message: fmt.Sprintf("unknown operation %q", op)}
	}

	target, err := resolveSlot(root, addr, true)
	if err != nil {
		return err
	}
	target.set(next)
	return nil
}

// resolveSlot walks addr.Path and returns the slot of the final segment.
// Missing or null intermediates are replaced by empty objects; they are
// attached to the state only when create is set.
func resolveSlot(root ir.IRObject, addr Address, create bool) (slot, error) {
	var container ir.IRValue = root
	last := len(addr.Path) - 1

	for i, seg := range addr.Path {
		var sl slot
		switch c := container.(type) {
		case ir.IRObject:
			if seg.IsIndex {
				return slot{}, &PathError{Code: PathInvalid, Path: addr.String(), Message: fmt.Sprintf("cannot index object with %d", seg.Index)}
			}
			sl = slot{obj: c, key: seg.Key}
		case ir.IRArray:
			if !seg.IsIndex {
				return slot{}, &PathError{Code: PathInvalid, Path: addr.String(), Message: fmt.Sprintf("cannot read key %q of array", seg.Key)}
			}
			idx := seg.Index
			if idx < 0 {
				idx += len(c)
			}
			if idx < 0 || idx >= len(c) {
				return slot{}, &PathError{Code: PathInvalid, Path: addr.String(), Message: fmt.Sprintf("index %d out of range [0,%d)", seg.Index, len(c))}
			}
			sl = slot{arr: c, index: idx}
		default:
			return slot{}, &PathError{Code: PathTypeMismatch, Path: addr.String(), Message: fmt.Sprintf("cannot traverse %s", ir.KindOf(container))}
		}

		if i == last {
			return sl, nil
		}

		next, _ := sl.get()
		if ir.IsNull(next) {
			next = ir.IRObject{}
			if create {
				sl.set(next)
			}
		}
		container = next
	}
	return slot{}, &PathError{Code: PathInvalid, Path: addr.String(), Message: "empty path"}
}
