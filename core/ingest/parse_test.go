package ingest

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/admissions/core"
)

func xlsxBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"NMMS_YEAR":       "nmms_year",
		"  Student Name ": "student_name",
		"\ufeffnmms_year": "nmms_year",
		"Father   Name":   "father_name",
		"gmat_score":      "gmat_score",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), "NormalizeHeader(%q)", in)
	}
}

func TestParse_csv(t *testing.T) {
	data := []byte("\ufeffNMMS Year, Student Name,GMAT_Score\n" +
		"2024,Asha,45\n" +
		",,\n" +
		"2023,Ravi\n")

	rows, err := Parse(data, "Upload.CSV")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"nmms_year": "2024", "student_name": "Asha", "gmat_score": "45"}, rows[0])
	assert.Equal(t, Row{"nmms_year": "2023", "student_name": "Ravi", "gmat_score": ""}, rows[1])
}

func TestParse_xlsx(t *testing.T) {
	data := xlsxBytes(t, [][]interface{}{
		{"nmms_year", "Student Name", "gmat_score"},
		{2024, "Asha", 45.5},
		{},
		{2023, "Ravi", 30},
	})

	for _, name := range []string{"upload.xlsx", "upload.xls"} {
		t.Run(name, func(t *testing.T) {
			rows, err := Parse(data, name)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, Row{"nmms_year": "2024", "student_name": "Asha", "gmat_score": "45.5"}, rows[0])
			assert.Equal(t, "Ravi", rows[1]["student_name"])
		})
	}
}

func TestParse_xlsxDates(t *testing.T) {
	data := xlsxBytes(t, [][]interface{}{
		{"Student Name", "DOB", "Contact No1"},
		{"Asha", time.Date(2012, time.March, 15, 0, 0, 0, 0, time.UTC), 9876543210},
		{"Ravi", "15-06-2010", ""},
		{"Binu", "2011-01-31", ""},
	})

	rows, err := Parse(data, "upload.xlsx")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2012-03-15", rows[0]["dob"])
	assert.Equal(t, "9876543210", rows[0]["contact_no1"])
	assert.Equal(t, "15-06-2010", rows[1]["dob"])
	assert.Equal(t, "2011-01-31", rows[2]["dob"])
}

func TestSerialToDate(t *testing.T) {
	tests := map[string]string{
		"40983":      "2012-03-15",
		"40983.5":    "2012-03-15",
		"15-06-2010": "15-06-2010",
		"":           "",
		"0":          "0",
		"-3":         "-3",
		"20120315":   "20120315",
	}
	for in, want := range tests {
		assert.Equal(t, want, serialToDate(in), "serialToDate(%q)", in)
	}
}

func TestParse_malformedCSV(t *testing.T) {
	tests := map[string][]byte{
		"bare quote in record": []byte("nmms_year,student_name\n2024,As\"ha\n"),
		"bare quote in header": []byte("nmms_year,stu\"dent\n2024,Asha\n"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			rows, err := Parse(data, "upload.csv")
			assert.Nil(t, rows)
			require.Error(t, err)
			var vErr *core.ValidationError
			assert.True(t, errors.As(err, &vErr), "got %T", errors.Cause(err))
			assert.Contains(t, err.Error(), `bare " in non-quoted-field`)
		})
	}
}

func TestParse_errors(t *testing.T) {
	// compound document header of a legacy workbook
	legacyXLS := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 504)...)

	tests := []struct {
		name    string
		data    []byte
		file    string
		wantErr error
	}{
		{name: "unknown extension", data: []byte("a,b\n1,2\n"), file: "upload.txt", wantErr: ErrUnsupportedFormat},
		{name: "no extension", data: []byte("a,b\n1,2\n"), file: "upload", wantErr: ErrUnsupportedFormat},
		{name: "legacy xls", data: legacyXLS, file: "upload.xls", wantErr: ErrUnsupportedFormat},
		{name: "corrupt xlsx", data: []byte("not a workbook"), file: "upload.xlsx", wantErr: ErrUnsupportedFormat},
		{name: "empty csv", data: []byte{}, file: "upload.csv", wantErr: ErrEmptyFile},
		{name: "header only", data: []byte("nmms_year,student_name\n"), file: "upload.csv", wantErr: ErrEmptyFile},
		{name: "blank rows only", data: []byte("nmms_year,student_name\n,\n , \n"), file: "upload.csv", wantErr: ErrEmptyFile},
		{name: "empty sheet", data: xlsxBytes(t, nil), file: "upload.xlsx", wantErr: ErrEmptyFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Parse(tt.data, tt.file)
			assert.Equal(t, tt.wantErr, err)
			assert.Nil(t, rows)
		})
	}
}
