package application

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/JonMunkholm/coursehub/internal/core"
)

// printAnalysis renders the planned changes followed by a one-line summary.
// Unchanged courses are only counted.
func printAnalysis(w io.Writer, a core.DeltaAnalysis) error {
	if a.WorkCount() > 0 {
		table := tablewriter.NewWriter(w)
		table.Header("Action", "Code", "New name", "Current name")
		for _, r := range a.Missing {
			if err := table.Append([]string{"create", r.Code, r.Name, ""}); err != nil {
				return err
			}
		}
		for _, c := range a.NameConflicts {
			if err := table.Append([]string{"rename", c.Code, c.CSVName, c.DBName}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d to create, %d to rename, %d unchanged\n",
		len(a.Missing), len(a.NameConflicts), len(a.Unchanged))
	return err
}

// printResult summarizes a sync run and lists failed records.
func printResult(w io.Writer, r core.SyncResult) error {
	if _, err := fmt.Fprintf(w, "Created %d, updated %d, failed %d\n",
		len(r.Created), len(r.Updated), len(r.Errors)); err != nil {
		return err
	}
	if len(r.Errors) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Code", "Name", "Error")
	for _, e := range r.Errors {
		if err := table.Append([]string{e.Record.Code, e.Record.Name, e.Error}); err != nil {
			return err
		}
	}
	return table.Render()
}

func printCourses(w io.Writer, snapshot core.Snapshot) error {
	table := tablewriter.NewWriter(w)
	table.Header("Code", "Name")
	for _, c := range snapshot {
		if err := table.Append([]string{c.Code, c.Name}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d courses\n", len(snapshot))
	return err
}

func printDuplicates(w io.Writer, groups []core.DuplicateGroup) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, "No duplicate course codes.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Normalized code", "Stored code", "Name")
	for _, g := range groups {
		for _, c := range g.Courses {
			if err := table.Append([]string{g.Code, c.Code, c.Name}); err != nil {
				return err
			}
		}
	}
	return table.Render()
}
