package store

import (
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/queryir"
)

const executionTable = "execution_log"

// executionColumns is the scan order used by QueryExecutions.
var executionColumns = []string{
	"app_id", "seq", "agent_id", "action", "params",
	"outcome", "result", "observations", "state_hash",
}

// querySchema lists the columns callers may select, filter or order on.
var querySchema = queryir.Schema{
	executionTable: {
		"id", "app_id", "seq", "agent_id", "action", "params", "success",
		"outcome", "result", "observations", "state_hash",
	},
}

// AfterSeq matches journal entries recorded after seq.
func AfterSeq(seq int64) queryir.Predicate {
	return queryir.Greater{Field: "seq", Value: ir.IRNumber(seq)}
}

// ByAgent matches journal entries made by one agent.
func ByAgent(agentID string) queryir.Predicate {
	return queryir.Equals{Field: "agent_id", Value: ir.IRString(agentID)}
}

// ByAction matches journal entries for one action.
func ByAction(action string) queryir.Predicate {
	return queryir.Equals{Field: "action", Value: ir.IRString(action)}
}

// BySuccess matches journal entries that succeeded or failed.
func BySuccess(success bool) queryir.Predicate {
	return queryir.Equals{Field: "success", Value: ir.IRBool(success)}
}

// ByOutcome matches journal entries with the given outcome label.
func ByOutcome(outcome string) queryir.Predicate {
	return queryir.Equals{Field: "outcome", Value: ir.IRString(outcome)}
}
