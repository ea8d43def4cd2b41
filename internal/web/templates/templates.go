// Package templates renders the small HTML fragments served to the admin
// console over HTMX.
package templates

//go:generate templ generate

import (
	"strings"

	"github.com/JonMunkholm/coursehub/internal/core"
)

// NameUnavailable is the placeholder name given to courses created without
// a known title.
const NameUnavailable = "Name Unavailable"

// CourseRow is one line of the course table.
type CourseRow struct {
	Code      string
	Name      string
	Duplicate bool
}

// CourseTableParams configures CourseTable.
type CourseTableParams struct {
	Rows   []CourseRow
	Filter string // "", "duplicates" or "nameless"
	Search string
}

// FilterCourses applies the admin console filters: "duplicates" keeps codes
// that collide after normalization, "nameless" keeps placeholder names, and
// search matches code or name case-insensitively.
func FilterCourses(courses []core.CourseRecord, filter, search string) []CourseRow {
	dupCodes := make(map[string]bool)
	for _, g := range core.FindDuplicates(core.Snapshot(courses)) {
		dupCodes[g.Code] = true
	}

	search = strings.ToLower(strings.TrimSpace(search))
	rows := make([]CourseRow, 0, len(courses))
	for _, c := range courses {
		dup := dupCodes[core.NormalizeCode(c.Code)]
		switch filter {
		case "duplicates":
			if !dup {
				continue
			}
		case "nameless":
			if c.Name != NameUnavailable {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Code), search) &&
			!strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		rows = append(rows, CourseRow{Code: c.Code, Name: c.Name, Duplicate: dup})
	}
	return rows
}
