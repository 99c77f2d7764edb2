package pipeline

import (
	"strconv"
	"time"

	"github.com/ravexina/NCBI-fasta-extractor/internal/formatter"
	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

// State is the position of a run in its lifecycle.
type State int

const (
	StateQuerying State = iota
	StateConfirming
	StateNoResults
	StateDeclined
	StateRunning
	StateFinalizing
	StateDone
	StateInterrupted
)

var stateNames = map[State]string{
	StateQuerying:    "querying",
	StateConfirming:  "confirming",
	StateNoResults:   "terminated (no results)",
	StateDeclined:    "terminated (declined)",
	StateRunning:     "running",
	StateFinalizing:  "finalizing",
	StateDone:        "done",
	StateInterrupted: "interrupted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Stats counts what happened to the identifiers of one run.
type Stats struct {
	Visited         int
	Skipped         int
	Unavailable     int
	Invalid         int
	Appended        int
	SequencesSaved  int
	SequencesFailed int
}

// Report summarizes a run. It is returned even when the run fails.
type Report struct {
	Query    models.RunQuery
	Known    int // identifiers of this query already in the set before the run
	State    State
	Stats    Stats
	Duration time.Duration
}

// Table renders the report as a two-column summary.
func (r *Report) Table() *formatter.Table {
	itoa := strconv.Itoa

	return formatter.NewTable("Metric", "Value").
		AddRow("term", r.Query.Term).
		AddRow("database", r.Query.Database).
		AddRow("results", itoa(r.Query.Count)).
		AddRow("already known", itoa(r.Known)).
		AddRow("visited", itoa(r.Stats.Visited)).
		AddRow("skipped (known)", itoa(r.Stats.Skipped)).
		AddRow("unavailable", itoa(r.Stats.Unavailable)).
		AddRow("invalid", itoa(r.Stats.Invalid)).
		AddRow("appended", itoa(r.Stats.Appended)).
		AddRow("sequences saved", itoa(r.Stats.SequencesSaved)).
		AddRow("sequences failed", itoa(r.Stats.SequencesFailed)).
		AddRow("state", r.State.String()).
		AddRow("duration", r.Duration.Round(time.Millisecond).String())
}
