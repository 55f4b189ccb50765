package memory

import (
	"context"
	"testing"

	"conti/internal/core"
)

func TestStore_ExportSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.ExportSnapshot(ctx, &core.Statement{
		Kind:        core.KindBalanceSheet,
		PeriodStart: "2025-07-01",
		PeriodEnd:   "2025-07-31",
	})
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	got := s.Exported()
	if len(got) != 1 {
		t.Fatalf("Exported() len = %d, want 1", len(got))
	}
	if got[0].Kind != core.KindBalanceSheet {
		t.Errorf("Kind = %v, want %v", got[0].Kind, core.KindBalanceSheet)
	}
}

func TestStore_ExportSnapshot_Nil(t *testing.T) {
	s := New()
	if _, err := s.ExportSnapshot(context.Background(), nil); err == nil {
		t.Error("ExportSnapshot(nil) should fail")
	}
}
