package core

import "sort"

// Analyze classifies parsed records against a snapshot.
//
// A record whose code is absent from the snapshot is missing; a record whose
// code is present with a different name (exact comparison) is a name
// conflict; anything else is unchanged. Input order is preserved within each
// bucket. Analyze has no side effects.
func Analyze(records []CourseRecord, snapshot Snapshot) DeltaAnalysis {
	existing := snapshot.Lookup()

	analysis := DeltaAnalysis{
		Missing:       []CourseRecord{},
		NameConflicts: []NameConflict{},
		Unchanged:     []CourseRecord{},
	}

	for _, rec := range records {
		dbName, ok := existing[NormalizeCode(rec.Code)]
		switch {
		case !ok:
			analysis.Missing = append(analysis.Missing, rec)
		case dbName != rec.Name:
			analysis.NameConflicts = append(analysis.NameConflicts, NameConflict{
				Code:    rec.Code,
				CSVName: rec.Name,
				DBName:  dbName,
			})
		default:
			analysis.Unchanged = append(analysis.Unchanged, rec)
		}
	}

	return analysis
}

// DuplicateGroup lists snapshot entries sharing one normalized code.
type DuplicateGroup struct {
	Code    string         `json:"code"`
	Courses []CourseRecord `json:"courses"`
}

// FindDuplicates groups snapshot entries whose normalized codes collide.
// Groups are sorted by code; entries keep snapshot order.
func FindDuplicates(snapshot Snapshot) []DuplicateGroup {
	byCode := make(map[string][]CourseRecord)
	for _, c := range snapshot {
		code := NormalizeCode(c.Code)
		byCode[code] = append(byCode[code], c)
	}

	groups := []DuplicateGroup{}
	for code, courses := range byCode {
		if len(courses) > 1 {
			groups = append(groups, DuplicateGroup{Code: code, Courses: courses})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Code < groups[j].Code
	})

	return groups
}
