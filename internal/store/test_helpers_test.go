package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/testutil"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// storePayments stores the payments fixture and returns its hash.
func storePayments(t *testing.T, s *Store) string {
	t.Helper()
	hash, err := s.PutDefinition(context.Background(), testutil.PaymentsDefinition())
	if err != nil {
		t.Fatalf("PutDefinition() failed: %v", err)
	}
	return hash
}

// createTestExecution creates a successful transfer record.
func createTestExecution(agent string, amount float64) ExecutionRecord {
	return ExecutionRecord{
		AppID:   "payments",
		AgentID: agent,
		Action:  "transfer",
		Params:  ir.IRObject{"to": ir.IRString("bob"), "amount": ir.IRNumber(amount)},
		Result:  ir.Succeeded(ir.IRObject{"amount": ir.IRNumber(amount)}),
		Observations: []ir.Observation{{
			ToAgent:  "bob",
			Message:  "You received a transfer",
			Data:     ir.IRObject{"amount": ir.IRNumber(amount)},
			Priority: ir.PriorityHigh,
			Seq:      1,
		}},
		StateHash: "test-hash",
	}
}
