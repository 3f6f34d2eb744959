package state

import (
	"slices"
	"strconv"

	"github.com/roach88/appsim/internal/ir"
)

// Document keys of the serialized state.
const (
	KeyPerAgent = "per_agent"
	KeyShared   = "shared"
)

// AgentIDField is set on every agent's namespace so definitions can read
// agent.id and agents[x].id.
const AgentIDField = "id"

// AppState is the mutable state of one app instance.
type AppState struct {
	PerAgent map[string]ir.IRObject
	Shared   ir.IRObject
}

// New returns an empty state.
func New() *AppState {
	return &AppState{
		PerAgent: map[string]ir.IRObject{},
		Shared:   ir.IRObject{},
	}
}

// FromSchema builds the initial state for a definition: shared fields get
// their defaults, and each listed agent gets the per-agent defaults.
func FromSchema(schema []ir.StateFieldDef, agentIDs ...string) *AppState {
	s := New()
	for _, f := range schema {
		if !f.PerAgent {
			s.Shared[f.Name] = f.InitialValue()
		}
	}
	for _, id := range agentIDs {
		s.AddAgent(id, schema)
	}
	return s
}

// AddAgent creates the per-agent namespace for id from the schema's
// per-agent defaults. It returns false, changing nothing, if the agent
// already exists.
func (s *AppState) AddAgent(id string, schema []ir.StateFieldDef) bool {
	if _, exists := s.PerAgent[id]; exists {
		return false
	}
	obj := ir.IRObject{}
	for _, f := range schema {
		if f.PerAgent {
			obj[f.Name] = f.InitialValue()
		}
	}
	if _, declared := obj[AgentIDField]; !declared {
		obj[AgentIDField] = ir.IRString(id)
	}
	s.PerAgent[id] = obj
	return true
}

// HasAgent reports whether id has a per-agent namespace.
func (s *AppState) HasAgent(id string) bool {
	_, ok := s.PerAgent[id]
	return ok
}

// Agent returns the live namespace of id. Callers must not mutate it.
func (s *AppState) Agent(id string) (ir.IRObject, bool) {
	obj, ok := s.PerAgent[id]
	return obj, ok
}

// AgentIDs returns the agent ids in sorted order.
func (s *AppState) AgentIDs() []string {
	ids := make([]string, 0, len(s.PerAgent))
	for id := range s.PerAgent {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AgentsObject returns the per-agent namespaces as one object keyed by
// agent id. The result shares structure with s and is read-only.
func (s *AppState) AgentsObject() ir.IRObject {
	obj := make(ir.IRObject, len(s.PerAgent))
	for id, ns := range s.PerAgent {
		obj[id] = ns
	}
	return obj
}

// Clone returns a deep copy that shares no mutable structure with s.
func (s *AppState) Clone() *AppState {
	out := &AppState{
		PerAgent: make(map[string]ir.IRObject, len(s.PerAgent)),
		Shared:   s.Shared.Clone(),
	}
	if out.Shared == nil {
		out.Shared = ir.IRObject{}
	}
	for id, ns := range s.PerAgent {
		out.PerAgent[id] = ns.Clone()
	}
	return out
}

// Equal reports deep equality of both namespaces.
func (s *AppState) Equal(other *AppState) bool {
	if s == nil || other == nil {
		return s == other
	}
	return ir.Equal(s.ToObject(), other.ToObject())
}

// ToObject returns an independent {per_agent, shared} document.
func (s *AppState) ToObject() ir.IRObject {
	c := s.Clone()
	return ir.IRObject{
		KeyPerAgent: c.AgentsObject(),
		KeyShared:   c.Shared,
	}
}

// FromObject builds a state from a {per_agent, shared} document. The
// result does not alias doc.
func FromObject(doc ir.IRObject) (*AppState, error) {
	for k := range doc {
		if k != KeyPerAgent && k != KeyShared {
			return nil, &SerializationError{Message: "unexpected key " + strconv.Quote(k)}
		}
	}

	perAgent, ok := doc[KeyPerAgent].(ir.IRObject)
	if !ok {
		return nil, &SerializationError{Message: "per_agent must be an object, got " + string(ir.KindOf(doc[KeyPerAgent]))}
	}
	shared, ok := doc[KeyShared].(ir.IRObject)
	if !ok {
		return nil, &SerializationError{Message: "shared must be an object, got " + string(ir.KindOf(doc[KeyShared]))}
	}

	s := &AppState{
		PerAgent: make(map[string]ir.IRObject, len(perAgent)),
		Shared:   shared.Clone(),
	}
	for id, ns := range perAgent {
		obj, ok := ns.(ir.IRObject)
		if !ok {
			return nil, &SerializationError{Message: "per_agent." + id + " must be an object, got " + string(ir.KindOf(ns))}
		}
		s.PerAgent[id] = obj.Clone()
	}
	return s, nil
}

// Snapshot encodes the state as canonical JSON of its {per_agent, shared}
// document. Equal states produce identical bytes.
func (s *AppState) Snapshot() ([]byte, error) {
	return ir.MarshalCanonical(s.ToObject())
}

// Restore decodes a snapshot. Malformed input yields a *SerializationError
// and no state.
func Restore(data []byte) (*AppState, error) {
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, &SerializationError{Message: "decode", Err: err}
	}
	doc, ok := v.(ir.IRObject)
	if !ok {
		return nil, &SerializationError{Message: "snapshot must be an object, got " + string(ir.KindOf(v))}
	}
	return FromObject(doc)
}

// Hash returns the content hash of the state document.
func (s *AppState) Hash() (string, error) {
	return ir.StateHash(s.ToObject())
}
