package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danielpatrickdp/lossgate/internal/decision"
	"github.com/danielpatrickdp/lossgate/internal/logging"
	"github.com/danielpatrickdp/lossgate/internal/problem"
	"github.com/danielpatrickdp/lossgate/internal/report"
	"github.com/danielpatrickdp/lossgate/internal/rpc"
	"github.com/danielpatrickdp/lossgate/internal/store"
)

// #region main

func main() {
	problemPath := flag.String("problem", "", "path to a problem file (.json, .yaml)")
	tieBreak := flag.String("tie-break", "", "first | all | error (overrides the problem file)")
	epsilon := flag.Float64("epsilon", 0, "tie and sum tolerance (overrides the problem file)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	dbPath := flag.String("db", "", "record the selection in this SQLite database")
	addr := flag.String("addr", "", "ask a lossgate server at HOST:PORT instead of selecting locally")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *problemPath == "" || (*dbPath != "" && *addr != "") {
		fmt.Fprintln(os.Stderr, "usage: lossgate --problem file.yaml [--tie-break first|all|error] [--epsilon E] [--json] [--db path | --addr host:port]")
		os.Exit(2)
	}

	f, err := problem.Load(*problemPath)
	if err != nil {
		log.WithError(err).Error("load problem")
		os.Exit(2)
	}
	opts, err := options(f, *tieBreak, *epsilon)
	if err != nil {
		log.WithError(err).Error("options")
		os.Exit(2)
	}
	p, err := f.Distribution()
	if err != nil {
		log.WithError(err).Error("distribution")
		os.Exit(2)
	}
	decisions := f.DecisionSet()
	entry := log.WithField("problem", f.Name)

	var res decision.SelectionResult
	if *addr != "" {
		res, err = selectRemote(*addr, f.Name, decisions, p, opts)
	} else {
		res, err = decision.SelectMinimumExpectedLoss(decisions, p, opts)
		if *dbPath != "" {
			if rerr := record(entry, *dbPath, f.Name, decisions, p, opts, res, err); rerr != nil {
				entry.WithError(rerr).Error("record selection")
				os.Exit(2)
			}
		}
	}
	if err != nil {
		code := exitCode(err)
		if code == 1 {
			entry = entry.WithField("outcome", logging.Outcome(err))
		}
		entry.Error(err)
		os.Exit(code)
	}
	entry.WithField("chosen", res.ChosenIndices()).Debug("selection made")

	if *jsonOut {
		err = report.WriteJSON(os.Stdout, res)
	} else {
		err = report.WriteTable(os.Stdout, res)
	}
	if err != nil {
		entry.WithError(err).Error("write output")
		os.Exit(2)
	}
}

// #endregion main

// #region exit-code

// exitCode maps a selection attempt to the process status: 0 on success,
// 1 when the selector rejected the input, 2 for everything else (dial
// failures, timeouts, malformed requests).
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case decision.IsSelectionError(err):
		return 1
	}
	return 2
}

// #endregion exit-code

// #region options

// options starts from the problem file and applies non-empty flag overrides.
func options(f *problem.File, tieBreak string, epsilon float64) (decision.Options, error) {
	opts, err := f.Options()
	if err != nil {
		return decision.Options{}, err
	}
	if tieBreak != "" {
		if opts.TieBreak, err = decision.ParseTieBreak(tieBreak); err != nil {
			return decision.Options{}, err
		}
	}
	if epsilon != 0 {
		opts.Epsilon = epsilon
	}
	return opts, nil
}

// #endregion options

// #region remote

func selectRemote(addr, name string, decisions []decision.Decision, p []float64, opts decision.Options) (decision.SelectionResult, error) {
	client, err := rpc.NewClient(addr)
	if err != nil {
		return decision.SelectionResult{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, _, err := client.Select(ctx, rpc.Request{
		Problem:       name,
		Probabilities: p,
		Decisions:     decisions,
		Options:       opts,
	})
	return res, err
}

// #endregion remote

// #region record

// record commits a successful selection and logs every attempt. Inputs that
// cannot be encoded are left out of the log row rather than dropping it.
func record(log *logrus.Entry, dbPath, name string, decisions []decision.Decision, p []float64, opts decision.Options, res decision.SelectionResult, selErr error) error {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	inputs := logging.NewInputsRecord(name, decisions, p, opts)
	entry := logging.ProvenanceEntry{
		Problem:     name,
		TriggerType: "cli",
		Outcome:     logging.Outcome(selErr),
	}
	if selErr != nil {
		entry.Reason = selErr.Error()
	} else {
		rec, err := s.Commit(name, p, res)
		if err != nil {
			return err
		}
		entry.SelectionID = rec.SelectionID
		inputs.Chosen = rec.Chosen
	}
	if err := logging.AttachInputs(&entry, inputs); err != nil {
		log.WithError(err).Warn("inputs not recorded")
	}
	return logging.LogSelection(s.DB(), entry)
}

// #endregion record
