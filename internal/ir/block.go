package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlockType is the "type" tag of a logic block.
type BlockType string

const (
	BlockValidate BlockType = "validate"
	BlockUpdate   BlockType = "update"
	BlockNotify   BlockType = "notify"
	BlockReturn   BlockType = "return"
	BlockError    BlockType = "error"
	BlockBranch   BlockType = "branch"
	BlockLoop     BlockType = "loop"
)

// LogicBlock is a sealed interface for one instruction of an action's logic.
// Branch and Loop own their child lists, so a program is a strict tree.
//
// Value-bearing fields (Update.Value, Return.Value, Notify.Data) hold
// expression trees: every string is an expression, or a template when it
// contains "${"; numbers, booleans and null are literals; arrays and
// objects are built element by element.
type LogicBlock interface {
	BlockType() BlockType
	logicBlock()
}

// UpdateOp is the operation an Update block applies to its target.
type UpdateOp string

const (
	OpSet      UpdateOp = "set"
	OpAdd      UpdateOp = "add"
	OpSubtract UpdateOp = "subtract"
	OpAppend   UpdateOp = "append"
)

// ValidUpdateOps defines allowed update operations.
var ValidUpdateOps = map[UpdateOp]bool{
	OpSet:      true,
	OpAdd:      true,
	OpSubtract: true,
	OpAppend:   true,
}

// Priority is the delivery priority of an observation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ValidPriorities defines allowed notify priorities.
var ValidPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
}

// DefaultLoopItem is the loop variable name when a Loop block omits "item".
const DefaultLoopItem = "item"

// ValidateBlock stops with ErrorMessage when Condition is falsy.
type ValidateBlock struct {
	Condition    string
	ErrorMessage string
}

// UpdateBlock applies Operation with Value to the state location Target.
type UpdateBlock struct {
	Target    string
	Operation UpdateOp
	Value     IRValue
}

// NotifyBlock queues an observation for the agent To evaluates to.
type NotifyBlock struct {
	To       string
	Message  string
	Data     IRObject
	Priority Priority
}

// ReturnBlock stops successfully with the evaluated Value object.
type ReturnBlock struct {
	Value IRObject
}

// ErrorBlock stops with the rendered Message.
type ErrorBlock struct {
	Message string
}

// BranchBlock runs Then when Condition is truthy, otherwise Else.
// A nil Else means the block has no else arm.
type BranchBlock struct {
	Condition string
	Then      []LogicBlock
	Else      []LogicBlock
}

// LoopBlock runs Body once per element of the array Collection evaluates
// to, binding each element to Item.
type LoopBlock struct {
	Collection string
	Item       string
	Body       []LogicBlock
}

func (ValidateBlock) BlockType() BlockType { return BlockValidate }
func (UpdateBlock) BlockType() BlockType   { return BlockUpdate }
func (NotifyBlock) BlockType() BlockType   { return BlockNotify }
func (ReturnBlock) BlockType() BlockType   { return BlockReturn }
func (ErrorBlock) BlockType() BlockType    { return BlockError }
func (BranchBlock) BlockType() BlockType   { return BlockBranch }
func (LoopBlock) BlockType() BlockType     { return BlockLoop }

func (ValidateBlock) logicBlock() {}
func (UpdateBlock) logicBlock()   {}
func (NotifyBlock) logicBlock()   {}
func (ReturnBlock) logicBlock()   {}
func (ErrorBlock) logicBlock()    {}
func (BranchBlock) logicBlock()   {}
func (LoopBlock) logicBlock()     {}

// blockWire is the JSON shape shared by every block variant.
type blockWire struct {
	Type         BlockType          `json:"type"`
	Condition    json.RawMessage    `json:"condition,omitempty"`
	ErrorMessage json.RawMessage    `json:"errorMessage,omitempty"`
	Target       json.RawMessage    `json:"target,omitempty"`
	Operation    string             `json:"operation,omitempty"`
	Value        json.RawMessage    `json:"value,omitempty"`
	To           json.RawMessage    `json:"to,omitempty"`
	Message      json.RawMessage    `json:"message,omitempty"`
	Data         json.RawMessage    `json:"data,omitempty"`
	Priority     string             `json:"priority,omitempty"`
	Then         []json.RawMessage  `json:"then,omitempty"`
	Else         *[]json.RawMessage `json:"else,omitempty"`
	Collection   json.RawMessage    `json:"collection,omitempty"`
	Item         string             `json:"item,omitempty"`
	Body         []json.RawMessage  `json:"body,omitempty"`
}

// UnmarshalBlocks decodes a list of BlockJSON documents.
func UnmarshalBlocks(raw []json.RawMessage) ([]LogicBlock, error) {
	blocks := make([]LogicBlock, 0, len(raw))
	for i, r := range raw {
		b, err := UnmarshalBlock(r)
		if err != nil {
			return nil, fmt.Errorf("logic[%d]: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// UnmarshalBlock decodes one BlockJSON document, dispatching on "type".
func UnmarshalBlock(data []byte) (LogicBlock, error) {
	var w blockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	switch BlockType(strings.ToLower(string(w.Type))) {
	case BlockValidate:
		cond, err := sourceField("condition", w.Condition, true)
		if err != nil {
			return nil, err
		}
		msg, err := sourceField("errorMessage", w.ErrorMessage, false)
		if err != nil {
			return nil, err
		}
		return ValidateBlock{Condition: cond, ErrorMessage: msg}, nil

	case BlockUpdate:
		target, err := sourceField("target", w.Target, true)
		if err != nil {
			return nil, err
		}
		if len(w.Value) == 0 {
			return nil, fmt.Errorf("update: missing field \"value\"")
		}
		val, err := unmarshalIRValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("update value: %w", err)
		}
		op := UpdateOp(strings.ToLower(w.Operation))
		if op == "" {
			op = OpSet
		}
		return UpdateBlock{Target: target, Operation: op, Value: val}, nil

	case BlockNotify:
		to, err := sourceField("to", w.To, true)
		if err != nil {
			return nil, err
		}
		msg, err := sourceField("message", w.Message, false)
		if err != nil {
			return nil, err
		}
		data, err := objectField("data", w.Data)
		if err != nil {
			return nil, err
		}
		prio := Priority(strings.ToLower(w.Priority))
		if prio == "" {
			prio = PriorityNormal
		}
		return NotifyBlock{To: to, Message: msg, Data: data, Priority: prio}, nil

	case BlockReturn:
		val, err := objectField("value", w.Value)
		if err != nil {
			return nil, err
		}
		return ReturnBlock{Value: val}, nil

	case BlockError:
		msg, err := sourceField("message", w.Message, false)
		if err != nil {
			return nil, err
		}
		return ErrorBlock{Message: msg}, nil

	case BlockBranch:
		cond, err := sourceField("condition", w.Condition, true)
		if err != nil {
			return nil, err
		}
		then, err := UnmarshalBlocks(w.Then)
		if err != nil {
			return nil, fmt.Errorf("then: %w", err)
		}
		var elseBlocks []LogicBlock
		if w.Else != nil {
			elseBlocks, err = UnmarshalBlocks(*w.Else)
			if err != nil {
				return nil, fmt.Errorf("else: %w", err)
			}
		}
		return BranchBlock{Condition: cond, Then: then, Else: elseBlocks}, nil

	case BlockLoop:
		coll, err := sourceField("collection", w.Collection, true)
		if err != nil {
			return nil, err
		}
		body, err := UnmarshalBlocks(w.Body)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		item := w.Item
		if item == "" {
			item = DefaultLoopItem
		}
		return LoopBlock{Collection: coll, Item: item, Body: body}, nil

	case "":
		return nil, fmt.Errorf("block missing \"type\"")
	default:
		return nil, fmt.Errorf("unknown block type %q", w.Type)
	}
}

// sourceField reads an expression or template field. Non-string JSON
// scalars are accepted and turned into their expression source, so
// "condition": false is the same as "condition": "false".
func sourceField(name string, raw json.RawMessage, required bool) (string, error) {
	if len(raw) == 0 {
		if required {
			return "", fmt.Errorf("missing field %q", name)
		}
		return "", nil
	}
	v, err := unmarshalIRValue(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	switch val := v.(type) {
	case IRString:
		return string(val), nil
	case IRNumber, IRBool, IRNull:
		return Stringify(val), nil
	default:
		return "", fmt.Errorf("%s: expected string, got %s", name, KindOf(v))
	}
}

// objectField reads a map of expressions. A missing field is an empty map.
func objectField(name string, raw json.RawMessage) (IRObject, error) {
	if len(raw) == 0 {
		return IRObject{}, nil
	}
	v, err := unmarshalIRValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	switch val := v.(type) {
	case IRObject:
		return val, nil
	case IRNull:
		return IRObject{}, nil
	default:
		return nil, fmt.Errorf("%s: expected object, got %s", name, KindOf(v))
	}
}

// blockOut is the marshaling counterpart of blockWire.
type blockOut struct {
	Type         BlockType     `json:"type"`
	Condition    string        `json:"condition,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Target       string        `json:"target,omitempty"`
	Operation    UpdateOp      `json:"operation,omitempty"`
	Value        IRValue       `json:"value,omitempty"`
	To           string        `json:"to,omitempty"`
	Message      string        `json:"message,omitempty"`
	Data         IRObject      `json:"data,omitempty"`
	Priority     Priority      `json:"priority,omitempty"`
	Then         []LogicBlock  `json:"then,omitempty"`
	Else         *[]LogicBlock `json:"else,omitempty"`
	Collection   string        `json:"collection,omitempty"`
	Item         string        `json:"item,omitempty"`
	Body         []LogicBlock  `json:"body,omitempty"`
}

func (b ValidateBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockOut{Type: BlockValidate, Condition: b.Condition, ErrorMessage: b.ErrorMessage})
}

func (b UpdateBlock) MarshalJSON() ([]byte, error) {
	val := b.Value
	if val == nil {
		val = IRNull{}
	}
	return json.Marshal(blockOut{Type: BlockUpdate, Target: b.Target, Operation: b.Operation, Value: val})
}

func (b NotifyBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockOut{Type: BlockNotify, To: b.To, Message: b.Message, Data: b.Data, Priority: b.Priority})
}

func (b ReturnBlock) MarshalJSON() ([]byte, error) {
	val := b.Value
	if val == nil {
		val = IRObject{}
	}
	return json.Marshal(blockOut{Type: BlockReturn, Value: val})
}

func (b ErrorBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockOut{Type: BlockError, Message: b.Message})
}

func (b BranchBlock) MarshalJSON() ([]byte, error) {
	out := blockOut{Type: BlockBranch, Condition: b.Condition, Then: b.Then}
	if out.Then == nil {
		out.Then = []LogicBlock{}
	}
	if b.Else != nil {
		out.Else = &b.Else
	}
	return json.Marshal(out)
}

func (b LoopBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockOut{Type: BlockLoop, Collection: b.Collection, Item: b.Item, Body: b.Body})
}
