package datarecording

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/structs"
)

const timeLayout = "2006-01-02 15:04:05.000000000"

// RunInfo is one row of the run_info table.
type RunInfo struct {
	Property string
	Value    string
}

// An ExecRecorder records how the program was run: wall-clock start and end,
// command line, working directory and the run parameters.
type ExecRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []RunInfo
}

// NewExecRecorder creates the run_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{
		tableName: "run_info",
		recorder:  recorder,
	}

	recorder.CreateTable(e.tableName, RunInfo{})

	return e
}

// Start notes the current execution. Every exported field of params, which
// must be a struct, becomes one row.
func (e *ExecRecorder) Start(params any) {
	e.entries = append(e.entries,
		RunInfo{"Start Time", time.Now().Format(timeLayout)},
		RunInfo{"Command", strings.Join(os.Args, " ")},
	)

	if cwd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, RunInfo{"Working Directory", cwd})
	}

	if params == nil {
		return
	}

	m := structs.Map(params)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		e.entries = append(e.entries, RunInfo{k, fmt.Sprint(m[k])})
	}
}

// End writes the notes together with the end time and flushes.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(e.tableName, entry)
	}

	e.recorder.InsertData(e.tableName,
		RunInfo{"End Time", time.Now().Format(timeLayout)})

	e.entries = nil

	e.recorder.Flush()
}
