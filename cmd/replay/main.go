package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/danielpatrickdp/lossgate/internal/logging"
	"github.com/danielpatrickdp/lossgate/internal/replay"
	"github.com/danielpatrickdp/lossgate/internal/report"
	"github.com/danielpatrickdp/lossgate/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to a lossgate database (DB mode)")
	problemPath := flag.String("problem", "", "path to a problem file with epochs (fixture mode)")
	trigger := flag.String("trigger", "", "DB mode: only replay entries with this trigger type")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	if (*dbPath == "" && *problemPath == "") || (*dbPath != "" && *problemPath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/lossgate.db [--trigger cli|rpc]")
		fmt.Fprintln(os.Stderr, "       replay --problem path/to/problem.yaml")
		os.Exit(2)
	}

	var exitCode int
	if *problemPath != "" {
		exitCode = runFixtureMode(log, *problemPath)
	} else {
		exitCode = runDBMode(log, *dbPath, *trigger)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

func runFixtureMode(log *logrus.Logger, path string) int {
	f, epochs, err := replay.LoadFixture(path)
	if err != nil {
		log.WithError(err).Error("load fixture")
		return 2
	}
	log.WithFields(logrus.Fields{"problem": f.Name, "epochs": len(epochs)}).Debug("replaying fixture")
	return printComparison(log, replay.Replay(epochs))
}

func runDBMode(log *logrus.Logger, dbPath, trigger string) int {
	s, err := store.NewStore(dbPath)
	if err != nil {
		log.WithError(err).Error("open db")
		return 2
	}
	defer s.Close()

	entries, err := logging.Entries(s.DB(), trigger)
	if err != nil {
		log.WithError(err).Error("read selection log")
		return 2
	}
	epochs, skipped, err := replay.FromLog(entries)
	if err != nil {
		log.WithError(err).Error("rebuild epochs")
		return 2
	}
	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("entries without inputs were skipped")
	}
	if len(epochs) == 0 {
		fmt.Fprintln(os.Stderr, "no replayable entries found in selection_log")
		return 2
	}
	return printComparison(log, replay.Replay(epochs))
}

// #endregion modes

// #region output

// printComparison writes the table and returns 1 if any checked epoch diverged.
func printComparison(log *logrus.Logger, results []replay.EpochResult) int {
	diverged, err := report.WriteComparison(os.Stdout, results)
	if err != nil {
		log.WithError(err).Error("write comparison")
		return 2
	}
	if diverged > 0 {
		return 1
	}
	return 0
}

// #endregion output
