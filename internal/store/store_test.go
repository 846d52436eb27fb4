package store

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/logging"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func robotSelection(t *testing.T, p []float64) decision.SelectionResult {
	t.Helper()
	res, err := decision.SelectMinimumExpectedLoss([]decision.Decision{
		{Name: "A", Losses: []float64{0, 1000}},
		{Name: "B", Losses: []float64{50, 0}},
	}, p, decision.DefaultOptions())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	return res
}

func TestCommitAndGet(t *testing.T) {
	s := tempDB(t)
	p := []float64{0.35, 0.65}
	res := robotSelection(t, p)

	rec, err := s.Commit("robot", p, res)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rec.SelectionID == "" {
		t.Fatal("expected non-empty selection ID")
	}
	if rec.ParentID != "" {
		t.Fatalf("expected empty parent, got %s", rec.ParentID)
	}

	got, err := s.Get(rec.SelectionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Problem != "robot" || got.TieBreak != decision.TieBreakFirst || got.Epsilon != decision.DefaultEpsilon {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.Chosen) != 1 || got.Chosen[0] != 1 {
		t.Errorf("expected chosen [1], got %v", got.Chosen)
	}
	if len(got.Table) != 2 || got.Table[1].Name != "B" {
		t.Fatalf("unexpected table %+v", got.Table)
	}
	for k := range res.Table {
		if math.Float64bits(got.Table[k].Value) != math.Float64bits(res.Table[k].Value) {
			t.Errorf("table[%d]: expected %v, got %v", k, res.Table[k].Value, got.Table[k].Value)
		}
	}
	for i := range p {
		if got.Probabilities[i] != p[i] {
			t.Errorf("probability %d: expected %v, got %v", i, p[i], got.Probabilities[i])
		}
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to round-trip")
	}
}

func TestCommitChainsParents(t *testing.T) {
	s := tempDB(t)

	first, err := s.Commit("robot", []float64{0.35, 0.65}, robotSelection(t, []float64{0.35, 0.65}))
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}
	second, err := s.Commit("robot", []float64{0.99, 0.01}, robotSelection(t, []float64{0.99, 0.01}))
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}
	other, err := s.Commit("other", []float64{0.5, 0.5}, robotSelection(t, []float64{0.5, 0.5}))
	if err != nil {
		t.Fatalf("Commit other: %v", err)
	}

	if second.ParentID != first.SelectionID {
		t.Errorf("expected parent %s, got %s", first.SelectionID, second.ParentID)
	}
	if other.ParentID != "" {
		t.Errorf("parents must not cross problems, got %s", other.ParentID)
	}

	latest, err := s.Latest("robot")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.SelectionID != second.SelectionID {
		t.Errorf("expected latest %s, got %s", second.SelectionID, latest.SelectionID)
	}
	if latest.Chosen[0] != 0 {
		t.Errorf("expected A chosen under clear skies, got %v", latest.Chosen)
	}
}

func TestLatestAndGetNotFound(t *testing.T) {
	s := tempDB(t)

	if _, err := s.Latest("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := tempDB(t)

	var ids []string
	for _, p := range [][]float64{{0.35, 0.65}, {0.99, 0.01}, {0.5, 0.5}} {
		rec, err := s.Commit("robot", p, robotSelection(t, p))
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		ids = append(ids, rec.SelectionID)
	}
	if _, err := s.Commit("other", []float64{1, 0}, robotSelection(t, []float64{1, 0})); err != nil {
		t.Fatalf("Commit other: %v", err)
	}

	recs, err := s.List("robot", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].SelectionID != ids[2] || recs[1].SelectionID != ids[1] {
		t.Errorf("expected newest first, got %s, %s", recs[0].SelectionID, recs[1].SelectionID)
	}

	all, err := s.List("", 10)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 records, got %d", len(all))
	}
}

func TestListWithProvenance(t *testing.T) {
	s := tempDB(t)
	p := []float64{0.35, 0.65}

	rec, err := s.Commit("robot", p, robotSelection(t, p))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	err = logging.LogSelection(s.DB(), logging.ProvenanceEntry{
		SelectionID: rec.SelectionID,
		Problem:     "robot",
		TriggerType: "cli",
		Outcome:     logging.OutcomeSelected,
		Reason:      "min expected loss 17.5",
	})
	if err != nil {
		t.Fatalf("LogSelection: %v", err)
	}
	if _, err := s.Commit("robot", p, robotSelection(t, p)); err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	rows, err := s.ListWithProvenance("robot", 10)
	if err != nil {
		t.Fatalf("ListWithProvenance: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].TriggerType != "" {
		t.Errorf("unlogged selection should have empty provenance, got %q", rows[0].TriggerType)
	}
	if rows[1].TriggerType != "cli" || rows[1].Outcome != logging.OutcomeSelected {
		t.Errorf("unexpected provenance %+v", rows[1])
	}
}

func TestLogRejectsUnknownSelection(t *testing.T) {
	s := tempDB(t)

	err := logging.LogSelection(s.DB(), logging.ProvenanceEntry{
		SelectionID: "does-not-exist",
		Problem:     "robot",
		TriggerType: "cli",
		Outcome:     logging.OutcomeSelected,
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	in := []float64{0, 1, -2.5, math.SmallestNonzeroFloat64, math.MaxFloat64, 0.1}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("expected %d values, got %d", len(in), len(out))
	}
	for i := range in {
		if math.Float64bits(in[i]) != math.Float64bits(out[i]) {
			t.Errorf("index %d: expected %v, got %v", i, in[i], out[i])
		}
	}
	if len(decodeVector(nil)) != 0 {
		t.Error("expected empty vector for nil blob")
	}
}
