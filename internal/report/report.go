// Package report renders selections and replay runs for people and scripts.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/replay"
)

// #region table

// WriteTable prints one row per decision with its expected loss and a "*"
// in the chosen column, then a summary line naming each chosen decision.
func WriteTable(w io.Writer, res decision.SelectionResult) error {
	out := [][]string{{"decision", "expected loss", "chosen"}}
	for _, e := range res.Table {
		chosen := ""
		if res.IsChosen(e.Index) {
			chosen = "*"
		}
		out = append(out, []string{entryName(e), FormatLoss(e.Value), chosen})
	}

	var buf bytes.Buffer
	writeColumns(&buf, out, 1)

	// each chosen entry carries its own loss; under "first" it may sit up to
	// epsilon above the table minimum
	chosen := make([]string, len(res.Chosen))
	for i, c := range res.Chosen {
		chosen[i] = entryName(c) + " " + FormatLoss(c.Value)
	}
	fmt.Fprintf(&buf, "\nchosen: %s (tie-break %s, epsilon %g)\n",
		strings.Join(chosen, ", "), res.TieBreak, res.Epsilon)

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteJSON prints the selection as indented JSON.
func WriteJSON(w io.Writer, res decision.SelectionResult) error {
	return writeJSON(w, res)
}

// FormatLoss renders an expected loss compactly.
func FormatLoss(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

func entryName(e decision.ExpectedLoss) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("#%d", e.Index)
}

// #endregion table

// #region comparison

// WriteComparison prints the replay table and summary and returns how many
// checked epochs diverged from their expectation.
func WriteComparison(w io.Writer, results []replay.EpochResult) (int, error) {
	out := [][]string{{"epoch", "expected", "replayed", "match"}}
	for _, r := range results {
		got := r.Action
		if r.Action == "selected" {
			got = strings.Join(r.Chosen, ",")
		}
		exp, match := "-", "-"
		if r.Checked {
			exp = strings.Join(r.Expected, ",")
			match = "DIFF"
			if r.Match {
				match = "OK"
			}
		}
		out = append(out, []string{r.EpochID, exp, got, match})
	}

	var buf bytes.Buffer
	writeColumns(&buf, out, len(out[0]))

	s := replay.Summarize(results)
	fmt.Fprintf(&buf, "\nSummary: %d epochs, %d selected, %d ambiguous, %d invalid; %d checked, %d match, %d diverge\n",
		s.TotalEpochs, s.Selected, s.Ambiguous, s.Invalid, s.Checked, s.Matches, s.Diverged)

	_, err := w.Write(buf.Bytes())
	return s.Diverged, err
}

// #endregion comparison

// #region columns

// writeColumns pads every column to its widest cell. Columns before
// rightFrom are left-aligned, the rest right-aligned.
func writeColumns(buf *bytes.Buffer, rows [][]string, rightFrom int) {
	numColumn := 0
	for _, row := range rows {
		if numColumn < len(row) {
			numColumn = len(row)
		}
	}

	max := make([]int, numColumn)
	for _, row := range rows {
		for i, s := range row {
			if n := utf8.RuneCountInString(s); max[i] < n {
				max[i] = n
			}
		}
	}

	for r, row := range rows {
		for i, s := range row {
			if i > 0 {
				buf.WriteString("  ")
			}
			last := i == len(row)-1
			switch {
			case r == 0 || i < rightFrom:
				if last {
					buf.WriteString(s)
				} else {
					fmt.Fprintf(buf, "%-*s", max[i], s)
				}
			default:
				fmt.Fprintf(buf, "%*s", max[i], s)
			}
		}
		buf.WriteString("\n")
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// #endregion columns
