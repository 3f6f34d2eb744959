package testutil

import (
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

func ptr[T any](v T) *T { return &v }

// PaymentsDefinition returns a small payments app: transfer with
// recipient, self-transfer and funds checks, plus get_balance and a
// looping pay_many.
func PaymentsDefinition() *ir.AppDefinition {
	return &ir.AppDefinition{
		AppID:       "payments",
		Name:        "Payments",
		Description: "Peer-to-peer transfers.",
		StateSchema: []ir.StateFieldDef{
			{Name: "balance", Type: ir.KindNumber, PerAgent: true, Default: ir.IRNumber(0)},
			{Name: "history", Type: ir.KindArray, PerAgent: true},
			{Name: "total_volume", Type: ir.KindNumber},
		},
		InitialConfig: ir.IRObject{"currency": ir.IRString("USD")},
		Actions: []ir.ActionDefinition{
			{
				Name:        "transfer",
				Description: "Send money to another agent.",
				Parameters: map[string]ir.ParamSpec{
					"to":     {Type: ir.KindString, Required: true},
					"amount": {Type: ir.KindNumber, Required: true, MinValue: ptr(0.01), MaxValue: ptr(10000.0)},
					"memo":   {Type: ir.KindString, Default: ir.IRString(""), MaxLength: ptr(20)},
				},
				Logic: []ir.LogicBlock{
					ir.ValidateBlock{Condition: "agents[params.to] != null", ErrorMessage: "Recipient ${params.to} not found"},
					ir.ValidateBlock{Condition: "params.to != agent.id", ErrorMessage: "Cannot transfer to yourself"},
					ir.ValidateBlock{Condition: "agent.balance >= params.amount", ErrorMessage: "Insufficient funds: balance ${agent.balance}, need ${params.amount}"},
					ir.UpdateBlock{Target: "agent.balance", Operation: ir.OpSubtract, Value: ir.IRString("params.amount")},
					ir.UpdateBlock{Target: "agents[params.to].balance", Operation: ir.OpAdd, Value: ir.IRString("params.amount")},
					ir.UpdateBlock{Target: "shared.total_volume", Operation: ir.OpAdd, Value: ir.IRString("params.amount")},
					ir.UpdateBlock{Target: "agent.history", Operation: ir.OpAppend, Value: ir.IRObject{
						"id":     ir.IRString("generate_id()"),
						"to":     ir.IRString("params.to"),
						"amount": ir.IRString("params.amount"),
					}},
					ir.NotifyBlock{
						To:       "params.to",
						Message:  "You received $${params.amount} from ${agent.id}",
						Data:     ir.IRObject{"amount": ir.IRString("params.amount"), "from": ir.IRString("agent.id")},
						Priority: ir.PriorityHigh,
					},
					ir.ReturnBlock{Value: ir.IRObject{
						"new_balance": ir.IRString("agent.balance"),
						"amount":      ir.IRString("params.amount"),
						"to":          ir.IRString("params.to"),
					}},
				},
			},
			{
				Name:       "get_balance",
				Parameters: map[string]ir.ParamSpec{},
				Logic: []ir.LogicBlock{
					ir.ReturnBlock{Value: ir.IRObject{"balance": ir.IRString("agent.balance"), "currency": ir.IRString("config.currency")}},
				},
			},
			{
				Name: "pay_many",
				Parameters: map[string]ir.ParamSpec{
					"recipients": {Type: ir.KindArray, Required: true},
					"amount":     {Type: ir.KindNumber, Required: true},
				},
				Logic: []ir.LogicBlock{
					ir.LoopBlock{Collection: "params.recipients", Item: "who", Body: []ir.LogicBlock{
						ir.UpdateBlock{Target: "agent.balance", Operation: ir.OpSubtract, Value: ir.IRString("params.amount")},
						ir.UpdateBlock{Target: "agents[who].balance", Operation: ir.OpAdd, Value: ir.IRString("params.amount")},
						ir.NotifyBlock{To: "who", Message: "Paid ${params.amount}"},
					}},
					ir.ReturnBlock{Value: ir.IRObject{"new_balance": ir.IRString("agent.balance")}},
				},
			},
		},
	}
}

// TransferState returns the canonical starting state for transfer tests:
// alice holds 1000 and bob 500.
func TransferState() *state.AppState {
	def := PaymentsDefinition()
	st := state.FromSchema(def.StateSchema, "alice", "bob")
	st.PerAgent["alice"]["balance"] = ir.IRNumber(1000)
	st.PerAgent["bob"]["balance"] = ir.IRNumber(500)
	return st
}
