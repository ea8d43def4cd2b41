package core

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"cs101", "CS101"},
		{" cs 101 ", "CS101"},
		{"ma\t2\n01", "MA201"},
		{"ČS 1", "ČS1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeCode(tt.input); got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []CourseRecord
	}{
		{
			name: "basic",
			text: "code,name\ncs101,Intro to CS\nMA 201,Linear Algebra",
			want: []CourseRecord{
				{Code: "CS101", Name: "Intro to CS"},
				{Code: "MA201", Name: "Linear Algebra"},
			},
		},
		{
			name: "columns in any order and case",
			text: "Name, CODE ,extra\nIntro,cs101,x\n",
			want: []CourseRecord{{Code: "CS101", Name: "Intro"}},
		},
		{
			name: "crlf and blank lines",
			text: "code,name\r\n\r\ncs101,Intro\r\n   \r\nph 1, Physics \r\n",
			want: []CourseRecord{
				{Code: "CS101", Name: "Intro"},
				{Code: "PH1", Name: "Physics"},
			},
		},
		{
			name: "byte order mark",
			text: "\ufeffcode,name\ncs101,Intro",
			want: []CourseRecord{{Code: "CS101", Name: "Intro"}},
		},
		{
			name: "inner whitespace in code removed",
			text: "code,name\n c s 1 0 1 ,Intro",
			want: []CourseRecord{{Code: "CS101", Name: "Intro"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(tt.text)
			if err != nil {
				t.Fatalf("ParseCSV error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCSV = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseCSV_RecordCountMatchesRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("code,name\n")
	const n = 250
	for i := 0; i < n; i++ {
		b.WriteString(" cs ")
		b.WriteString(strings.Repeat("x", i%7+1))
		b.WriteString(",Course\n")
	}

	got, err := ParseCSV(b.String())
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(got) != n {
		t.Fatalf("len = %d, want %d", len(got), n)
	}
	for _, rec := range got {
		if rec.Code != NormalizeCode(rec.Code) || strings.ContainsAny(rec.Code, " \t") {
			t.Errorf("code %q is not normalized", rec.Code)
		}
	}
}

func TestParseCSV_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMsg string
	}{
		{"empty", "", "at least a header row"},
		{"header only", "code,name\n", "at least a header row"},
		{"header only with blank lines", "code,name\n\n\n", "at least a header row"},
		{"missing name column", "code,title\ncs101,Intro", "missing required column: name"},
		{"missing code column", "id,name\n1,Intro", "missing required column: code"},
		{"missing both", "a,b\n1,2", "missing required column: code, name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(tt.text)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
			}
			if !strings.Contains(verr.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", verr.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseCSV_RowErrorsAreAllOrNothing(t *testing.T) {
	text := "code,name\ncs101,Intro\n,No Code\nma201,\nph1,Physics"

	got, err := ParseCSV(text)
	if got != nil {
		t.Errorf("expected no records, got %+v", got)
	}

	var rowErrs RowErrors
	if !errors.As(err, &rowErrs) {
		t.Fatalf("expected RowErrors, got %T (%v)", err, err)
	}

	want := RowErrors{
		{Line: 3, Code: "", Name: "No Code", Message: "Missing code"},
		{Line: 4, Code: "ma201", Name: "", Message: "Missing name"},
	}
	if !reflect.DeepEqual(rowErrs, want) {
		t.Errorf("row errors = %+v, want %+v", rowErrs, want)
	}
}

func TestParseCSVPartial_KeepsValidRows(t *testing.T) {
	res, err := ParseCSVPartial("code,name\ncs101,Intro\n,Orphan\nshort\nph1,Physics")
	if err != nil {
		t.Fatalf("ParseCSVPartial error: %v", err)
	}

	if res.TotalRows != 4 {
		t.Errorf("TotalRows = %d, want 4", res.TotalRows)
	}
	wantRecords := []CourseRecord{{Code: "CS101", Name: "Intro"}, {Code: "PH1", Name: "Physics"}}
	if !reflect.DeepEqual(res.Records, wantRecords) {
		t.Errorf("Records = %+v, want %+v", res.Records, wantRecords)
	}
	if len(res.RowErrors) != 2 {
		t.Fatalf("RowErrors = %+v, want 2", res.RowErrors)
	}
	if res.RowErrors[1].Line != 4 || res.RowErrors[1].Message != "Missing name" {
		t.Errorf("short row error = %+v", res.RowErrors[1])
	}
}

func TestRowErrorMessage(t *testing.T) {
	re := RowError{Line: 3, Code: "", Name: "Intro", Message: "Missing code"}
	want := `Row 3: Missing code - Code: "", Name: "Intro"`
	if got := re.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSanitizeText_InvalidUTF8(t *testing.T) {
	got := sanitizeText([]byte("code,name\ncs1,Caf\xe9"))
	if !strings.HasSuffix(got, "Caf\uFFFD") {
		t.Errorf("invalid byte not replaced: %q", got)
	}
}

func TestMakeHeaderIndex_FirstDuplicateWins(t *testing.T) {
	idx := MakeHeaderIndex([]string{"code", "name", "CODE"})
	if idx[ColumnCode] != 0 {
		t.Errorf("code index = %d, want 0", idx[ColumnCode])
	}
}

func writeWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestParseWorkbook(t *testing.T) {
	buf := writeWorkbook(t, [][]any{
		{"Code", "Name"},
		{"cs 101", "Intro"},
		{"", ""},
		{"ma201", ""},
	})

	res, err := ParseWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseWorkbook error: %v", err)
	}

	if want := []CourseRecord{{Code: "CS101", Name: "Intro"}}; !reflect.DeepEqual(res.Records, want) {
		t.Errorf("Records = %+v, want %+v", res.Records, want)
	}
	if len(res.RowErrors) != 1 || res.RowErrors[0].Line != 3 {
		t.Errorf("RowErrors = %+v, want one error on line 3", res.RowErrors)
	}
}

func TestParseWorkbook_NotAWorkbook(t *testing.T) {
	_, err := ParseWorkbook(strings.NewReader("code,name\ncs1,Intro"))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
}
