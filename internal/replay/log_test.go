package replay

import (
	"testing"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/logging"
)

func logEntry(t *testing.T, id int64, p []float64, opts decision.Options) logging.ProvenanceEntry {
	t.Helper()
	decisions := []decision.Decision{
		{Name: "A", Losses: []float64{0, 1000}},
		{Name: "B", Losses: []float64{50, 0}},
	}
	in := logging.NewInputsRecord("robot", decisions, p, opts)
	res, err := decision.SelectMinimumExpectedLoss(decisions, p, opts)
	e := logging.ProvenanceEntry{ID: id, Problem: "robot", TriggerType: "cli", Outcome: logging.Outcome(err)}
	if err == nil {
		in.Chosen = res.ChosenIndices()
	} else {
		e.Reason = err.Error()
	}
	js, err := logging.EncodeInputs(in)
	if err != nil {
		t.Fatalf("EncodeInputs: %v", err)
	}
	e.InputsJSON = js
	return e
}

func TestFromLog_ReplaysRecordedOutcomes(t *testing.T) {
	entries := []logging.ProvenanceEntry{
		logEntry(t, 1, []float64{0.35, 0.65}, decision.DefaultOptions()),
		logEntry(t, 2, []float64{0.5, 0.6}, decision.DefaultOptions()),
		{ID: 3, Problem: "robot", Outcome: logging.OutcomeInvalid},
		logEntry(t, 4, []float64{0.99, 0.01}, decision.Options{TieBreak: decision.TieBreakAll, Epsilon: 1e-9}),
	}

	epochs, skipped, err := FromLog(entries)
	if err != nil {
		t.Fatalf("FromLog: %v", err)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped entry, got %d", skipped)
	}
	if len(epochs) != 3 {
		t.Fatalf("expected 3 epochs, got %d", len(epochs))
	}
	if epochs[0].ID != "1:robot" {
		t.Errorf("unexpected epoch id %q", epochs[0].ID)
	}
	if len(epochs[0].Expected) != 1 || epochs[0].Expected[0] != "B" {
		t.Errorf("expected [B], got %v", epochs[0].Expected)
	}
	if len(epochs[1].Expected) != 1 || epochs[1].Expected[0] != logging.OutcomeInvalid {
		t.Errorf("expected [invalid], got %v", epochs[1].Expected)
	}
	if epochs[2].Options.TieBreak != decision.TieBreakAll || epochs[2].Options.Epsilon != 1e-9 {
		t.Errorf("options not restored: %+v", epochs[2].Options)
	}

	s := Summarize(Replay(epochs))
	if s.Checked != 3 || s.Matches != 3 || s.Diverged != 0 {
		t.Errorf("expected 3 checked matches, got %+v", s)
	}
}

func TestFromLog_BadInputs(t *testing.T) {
	_, _, err := FromLog([]logging.ProvenanceEntry{{ID: 7, InputsJSON: "{not json"}})
	if err == nil {
		t.Fatal("expected error for corrupt inputs_json")
	}
}
