package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/appsim/internal/expr"
	"github.com/roach88/appsim/internal/ir"
)

// Program is a compiled action logic tree. Programs are immutable.
type Program struct {
	blocks []node
}

// Len returns the number of top-level blocks.
func (p *Program) Len() int {
	return len(p.blocks)
}

// node is one compiled block.
type node interface {
	blockType() ir.BlockType
}

type validateNode struct {
	cond expr.Expr
	msg  *expr.Template
}

type updateNode struct {
	target *Target
	op     ir.UpdateOp
	value  *expr.ValueExpr
}

type notifyNode struct {
	to       expr.Expr
	msg      *expr.Template
	data     *expr.ValueExpr
	priority ir.Priority
}

type returnNode struct {
	value *expr.ValueExpr
}

type errorNode struct {
	msg *expr.Template
}

type branchNode struct {
	cond     expr.Expr
	then     []node
	elseList []node
	hasElse  bool
}

type loopNode struct {
	collection expr.Expr
	item       string
	body       []node
}

func (validateNode) blockType() ir.BlockType { return ir.BlockValidate }
func (updateNode) blockType() ir.BlockType   { return ir.BlockUpdate }
func (notifyNode) blockType() ir.BlockType   { return ir.BlockNotify }
func (returnNode) blockType() ir.BlockType   { return ir.BlockReturn }
func (errorNode) blockType() ir.BlockType    { return ir.BlockError }
func (branchNode) blockType() ir.BlockType   { return ir.BlockBranch }
func (loopNode) blockType() ir.BlockType     { return ir.BlockLoop }

// DefaultValidationMessage is used when a Validate block has no message.
const DefaultValidationMessage = "Validation failed"

// CompileError reports one problem found while compiling a block.
type CompileError struct {
	Block string // e.g. "logic[1].then[0]"
	Field string // e.g. "condition"
	Err   error
}

func (e *CompileError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %v", e.Block, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Block, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// CompileErrors collects every problem found in one program.
type CompileErrors []*CompileError

func (es CompileErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames may not be used as loop variables.
var reservedNames = map[string]bool{
	"true": true, "false": true, "null": true,
	"and": true, "or": true, "not": true,
}

// Compile compiles a logic tree. On failure it returns CompileErrors
// listing every problem found, not just the first.
func Compile(blocks []ir.LogicBlock) (*Program, error) {
	c := &compiler{}
	nodes := c.list("logic", blocks)
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return &Program{blocks: nodes}, nil
}

// MustCompile is like Compile but panics on error. Use only in tests.
func MustCompile(blocks ...ir.LogicBlock) *Program {
	p, err := Compile(blocks)
	if err != nil {
		panic(err)
	}
	return p
}

type compiler struct {
	errs  CompileErrors
	items []string // loop variables in scope
}

func (c *compiler) fail(block, field string, err error) {
	c.errs = append(c.errs, &CompileError{Block: block, Field: field, Err: err})
}

func (c *compiler) list(path string, blocks []ir.LogicBlock) []node {
	nodes := make([]node, 0, len(blocks))
	for i, b := range blocks {
		if n := c.block(fmt.Sprintf("%s[%d]", path, i), b); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (c *compiler) block(path string, b ir.LogicBlock) node {
	switch blk := b.(type) {
	case ir.ValidateBlock:
		n := validateNode{
			cond: c.expression(path, "condition", blk.Condition),
			msg:  c.template(path, "errorMessage", blk.ErrorMessage, DefaultValidationMessage),
		}
		return n

	case ir.UpdateBlock:
		n := updateNode{op: blk.Operation}
		if !ir.ValidUpdateOps[blk.Operation] {
			c.fail(path, "operation", fmt.Errorf("unknown operation %q (want set, add, subtract or append)", blk.Operation))
		}
		t, err := ParseTarget(blk.Target)
		if err != nil {
			c.fail(path, "target", err)
		} else {
			c.checkExprs(path, "target", t.Exprs()...)
			n.target = t
		}
		n.value = c.value(path, "value", blk.Value)
		return n

	case ir.NotifyBlock:
		n := notifyNode{
			to:       c.expression(path, "to", blk.To),
			msg:      c.template(path, "message", blk.Message, ""),
			data:     c.value(path, "data", objectOrEmpty(blk.Data)),
			priority: blk.Priority,
		}
		if n.priority == "" {
			n.priority = ir.PriorityNormal
		}
		if !ir.ValidPriorities[n.priority] {
			c.fail(path, "priority", fmt.Errorf("unknown priority %q (want low, normal or high)", blk.Priority))
		}
		return n

	case ir.ReturnBlock:
		return returnNode{value: c.value(path, "value", objectOrEmpty(blk.Value))}

	case ir.ErrorBlock:
		return errorNode{msg: c.template(path, "message", blk.Message, "")}

	case ir.BranchBlock:
		n := branchNode{
			cond:    c.expression(path, "condition", blk.Condition),
			then:    c.list(path+".then", blk.Then),
			hasElse: blk.Else != nil,
		}
		if n.hasElse {
			n.elseList = c.list(path+".else", blk.Else)
		}
		return n

	case ir.LoopBlock:
		item := blk.Item
		if item == "" {
			item = ir.DefaultLoopItem
		}
		if !identPattern.MatchString(item) || reservedNames[item] || IsRoot(item) || expr.IsBuiltin(item) {
			c.fail(path, "item", fmt.Errorf("invalid loop variable name %q", item))
		}
		n := loopNode{
			collection: c.expression(path, "collection", blk.Collection),
			item:       item,
		}
		c.items = append(c.items, item)
		n.body = c.list(path+".body", blk.Body)
		c.items = c.items[:len(c.items)-1]
		return n

	case nil:
		c.fail(path, "", fmt.Errorf("nil block"))
		return nil

	default:
		c.fail(path, "", fmt.Errorf("unsupported block type %T", b))
		return nil
	}
}

func objectOrEmpty(obj ir.IRObject) ir.IRObject {
	if obj == nil {
		return ir.IRObject{}
	}
	return obj
}

func (c *compiler) expression(path, field, src string) expr.Expr {
	if strings.TrimSpace(src) == "" {
		c.fail(path, field, fmt.Errorf("expression is empty"))
		return nil
	}
	e, err := expr.Parse(src)
	if err != nil {
		c.fail(path, field, err)
		return nil
	}
	c.checkExprs(path, field, e)
	return e
}

func (c *compiler) template(path, field, src, fallback string) *expr.Template {
	if src == "" {
		src = fallback
	}
	t, err := expr.ParseTemplate(src)
	if err != nil {
		c.fail(path, field, err)
		return nil
	}
	c.checkExprs(path, field, t.Exprs()...)
	return t
}

func (c *compiler) value(path, field string, v ir.IRValue) *expr.ValueExpr {
	ve, err := expr.CompileValue(v)
	if err != nil {
		c.fail(path, field, err)
		return nil
	}
	c.checkExprs(path, field, ve.Exprs()...)
	return ve
}

// checkExprs reports identifiers that are neither roots nor loop variables
// in scope, and calls to unknown functions or with the wrong arity.
func (c *compiler) checkExprs(path, field string, es ...expr.Expr) {
	for _, e := range es {
		for _, name := range expr.FreeIdents(e) {
			if !IsRoot(name) && !c.inScope(name) {
				c.fail(path, field, fmt.Errorf("unknown identifier %q", name))
			}
		}
		expr.Walk(e, func(n expr.Expr) {
			if call, ok := n.(*expr.Call); ok {
				if err := expr.CheckCall(call); err != nil {
					c.fail(path, field, err)
				}
			}
		})
	}
}

func (c *compiler) inScope(name string) bool {
	for _, item := range c.items {
		if item == name {
			return true
		}
	}
	return false
}
