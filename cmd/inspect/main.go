package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/report"
	"github.com/danielpatrickdp/lossgate/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to lossgate.db")
	last := flag.Int("last", 20, "show N most recent selections")
	problemName := flag.String("problem", "", "only show selections for this problem")
	selectionID := flag.String("selection", "", "show single selection detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/lossgate.db [--last N] [--problem name] [--selection id] [--json]")
		os.Exit(2)
	}

	s, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *selectionID != "" {
		err = runDetailMode(s, *selectionID, *jsonOut)
	} else {
		err = runListMode(s, *problemName, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	SelectionID string  `json:"selection_id"`
	Problem     string  `json:"problem"`
	Chosen      string  `json:"chosen"`
	MinLoss     float64 `json:"min_expected_loss"`
	TieBreak    string  `json:"tie_break"`
	Trigger     string  `json:"trigger,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func runListMode(s *store.Store, problemName string, last int, jsonOut bool) error {
	records, err := s.ListWithProvenance(problemName, last)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no selections found")
		return nil
	}

	// store returns newest first, reverse for chronological
	rows := make([]listRow, len(records))
	for i, rp := range records {
		res := selectionOf(rp.Record)
		rows[len(records)-1-i] = listRow{
			SelectionID: rp.SelectionID,
			Problem:     rp.Problem,
			Chosen:      chosenNames(res),
			MinLoss:     res.MinExpectedLoss(),
			TieBreak:    string(rp.TieBreak),
			Trigger:     rp.TriggerType,
			CreatedAt:   rp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	return printListTable(rows)
}

func printListTable(rows []listRow) error {
	fmt.Printf("%-10s  %-16s  %-16s  %12s  %-6s  %-8s  %s\n",
		"Selection", "Problem", "Chosen", "Exp. Loss", "Tie", "Trigger", "Time")
	fmt.Printf("%-10s+-%-16s+-%-16s+-%12s+-%-6s+-%-8s+-%s\n",
		"----------", "----------------", "----------------", "------------", "------", "--------", "--------------------")
	for _, r := range rows {
		trigger := "-"
		if r.Trigger != "" {
			trigger = r.Trigger
		}
		fmt.Printf("%-10s  %-16s  %-16s  %12s  %-6s  %-8s  %s\n",
			shortID(r.SelectionID), r.Problem, r.Chosen, report.FormatLoss(r.MinLoss), r.TieBreak, trigger, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	SelectionID   string                   `json:"selection_id"`
	ParentID      string                   `json:"parent_id,omitempty"`
	Problem       string                   `json:"problem"`
	CreatedAt     string                   `json:"created_at"`
	Probabilities []float64                `json:"probabilities"`
	Selection     decision.SelectionResult `json:"selection"`
}

func runDetailMode(s *store.Store, id string, jsonOut bool) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}
	out := detailOutput{
		SelectionID:   rec.SelectionID,
		ParentID:      rec.ParentID,
		Problem:       rec.Problem,
		CreatedAt:     rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Probabilities: rec.Probabilities,
		Selection:     selectionOf(rec),
	}
	if jsonOut {
		return printJSON(out)
	}

	parent := out.ParentID
	if parent == "" {
		parent = "-"
	}
	fmt.Printf("Selection:     %s\n", out.SelectionID)
	fmt.Printf("Parent:        %s\n", parent)
	fmt.Printf("Problem:       %s\n", out.Problem)
	fmt.Printf("Created:       %s\n", out.CreatedAt)
	fmt.Printf("Probabilities: %v\n\n", out.Probabilities)
	return report.WriteTable(os.Stdout, out.Selection)
}

// #endregion detail-mode

// #region output

// selectionOf rebuilds the selection result stored in rec.
func selectionOf(rec store.Record) decision.SelectionResult {
	res := decision.SelectionResult{
		TieBreak: rec.TieBreak,
		Epsilon:  rec.Epsilon,
		Table:    rec.Table,
	}
	for _, idx := range rec.Chosen {
		if idx >= 0 && idx < len(rec.Table) {
			res.Chosen = append(res.Chosen, rec.Table[idx])
		}
	}
	return res
}

func chosenNames(res decision.SelectionResult) string {
	names := make([]string, len(res.Chosen))
	for i, c := range res.Chosen {
		names[i] = c.Name
		if names[i] == "" {
			names[i] = fmt.Sprintf("#%d", c.Index)
		}
	}
	return strings.Join(names, ",")
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
