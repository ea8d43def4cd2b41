package core

// csv.go turns uploaded course lists into CourseRecords.
//
// The accepted format is deliberately simple: comma-separated fields with a
// header row containing "code" and "name" (any case, any position). There is
// no quoting or escaping, so a comma inside a field is not supported. Blank
// lines are ignored and do not count toward line numbers.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ParseResult holds the valid records and the row errors of a single parse.
type ParseResult struct {
	Records   []CourseRecord `json:"records"`
	RowErrors RowErrors      `json:"rowErrors"`
	TotalRows int            `json:"totalRows"` // data rows, excluding header and blank lines
}

// Strict applies the all-or-nothing policy: records are returned only when
// no row failed, otherwise the complete list of row errors is returned.
func (r ParseResult) Strict() ([]CourseRecord, error) {
	if len(r.RowErrors) > 0 {
		return nil, r.RowErrors
	}
	return r.Records, nil
}

// ParseCSV parses CSV text with the strict policy.
// It returns a *ValidationError for structural problems and RowErrors when
// any data row is missing a value.
func ParseCSV(text string) ([]CourseRecord, error) {
	res, err := ParseCSVPartial(text)
	if err != nil {
		return nil, err
	}
	return res.Strict()
}

// ParseCSVPartial parses CSV text and returns valid rows alongside row
// errors. Only structural problems produce an error.
func ParseCSVPartial(text string) (ParseResult, error) {
	text = sanitizeText([]byte(text))

	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, ","))
	}

	return parseRows(rows)
}

// ParseWorkbook parses the first sheet of an xlsx workbook using the same
// header and row rules as ParseCSVPartial.
func ParseWorkbook(r io.Reader) (ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ParseResult{}, &ValidationError{Message: fmt.Sprintf("unreadable workbook: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}, &ValidationError{Message: "workbook has no sheets"}
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return ParseResult{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	rows := make([][]string, 0, len(all))
	for _, row := range all {
		if isBlankRow(row) {
			continue
		}
		rows = append(rows, row)
	}

	return parseRows(rows)
}

// parseRows applies header validation and row rules to non-blank rows.
func parseRows(rows [][]string) (ParseResult, error) {
	if len(rows) < 2 {
		return ParseResult{}, &ValidationError{
			Message: "file must have at least a header row and one data row",
		}
	}

	idx, err := ValidateHeaders(rows[0])
	if err != nil {
		return ParseResult{}, err
	}
	codePos, namePos := idx[ColumnCode], idx[ColumnName]

	res := ParseResult{
		Records:   make([]CourseRecord, 0, len(rows)-1),
		TotalRows: len(rows) - 1,
	}

	for i, row := range rows[1:] {
		code := cell(row, codePos)
		name := cell(row, namePos)

		if code == "" || name == "" {
			missing := ColumnName
			if code == "" {
				missing = ColumnCode
			}
			res.RowErrors = append(res.RowErrors, RowError{
				Line:    i + 2, // header is line 1
				Code:    code,
				Name:    name,
				Message: "Missing " + missing,
			})
			continue
		}

		res.Records = append(res.Records, CourseRecord{
			Code: NormalizeCode(code),
			Name: name,
		})
	}

	return res, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// utf8BOM is prepended by some Windows spreadsheet exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sanitizeText strips a leading UTF-8 BOM and replaces invalid UTF-8 bytes
// with the replacement character.
func sanitizeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}

	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteRune(r)
		}
		data = data[size:]
	}
	return b.String()
}
