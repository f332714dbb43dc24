package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/admissions/core"
)

var (
	ErrNoFile            = errors.New("no file uploaded")
	ErrUnsupportedFormat = errors.New("unsupported file format, please upload a CSV, XLS or XLSX file")
	ErrEmptyFile         = errors.New("the uploaded file contains no records")
)

const zipMIME = "application/zip"

// columns holding dates, read from spreadsheets as date serials
var dateColumns = []string{"dob"}

// serial of 9999-12-31, the last date excel represents
const maxDateSerial = 2958465

// Row is one parsed data row keyed by normalized column name.
type Row map[string]string

// NormalizeHeader trims, lowers and replaces spaces with underscores.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

// Parse dispatches on the file extension of name.
func Parse(data []byte, name string) ([]Row, error) {
	var rows []Row
	var err error

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err = parseCSV(bytes.NewReader(data))
	case ".xlsx":
		rows, err = parseXLSX(bytes.NewReader(data))
	case ".xls":
		// legacy BIFF workbooks are not readable, but .xls is often OOXML renamed
		if !isZip(data) {
			return nil, ErrUnsupportedFormat
		}
		rows, err = parseXLSX(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// isZip reports whether data is a zip archive or one of its descendants (xlsx, docx...).
func isZip(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is(zipMIME) {
			return true
		}
	}
	return false
}

func parseCSV(r io.Reader) ([]Row, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true

	header, err := rdr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, malformedCSV(err)
	}
	normalizeHeaders(header)

	var rows []Row
	for {
		rec, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformedCSV(err)
		}
		if row, ok := toRow(header, rec); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// malformedCSV reports a csv syntax error as an input error. Other read errors are returned wrapped.
func malformedCSV(err error) error {
	var pErr *csv.ParseError
	if errors.As(err, &pErr) {
		return core.NewValidationError(errors.Wrap(pErr, "malformed csv file"))
	}
	return errors.Wrap(err, "reading csv")
}

func parseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrUnsupportedFormat
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	// raw values keep date serials and long numbers unformatted
	recs, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrap(err, "reading sheet")
	}
	if len(recs) == 0 {
		return nil, nil
	}

	header := recs[0]
	normalizeHeaders(header)
	var rows []Row
	for _, rec := range recs[1:] {
		if row, ok := toRow(header, rec); ok {
			for _, col := range dateColumns {
				if v, found := row[col]; found {
					row[col] = serialToDate(v)
				}
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// serialToDate converts an excel date serial to YYYY-MM-DD. Other values are returned as is.
func serialToDate(v string) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || serial <= 0 || serial > maxDateSerial {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format("2006-01-02")
}

func normalizeHeaders(header []string) {
	for i, h := range header {
		header[i] = NormalizeHeader(h)
	}
}

// toRow maps a record onto the header. Missing cells default to "".
// Fully blank records are skipped.
func toRow(header, rec []string) (Row, bool) {
	row := make(Row, len(header))
	blank := true
	for i, col := range header {
		if col == "" {
			continue
		}
		var val string
		if i < len(rec) {
			val = rec[i]
		}
		if strings.TrimSpace(val) != "" {
			blank = false
		}
		row[col] = val
	}
	return row, !blank
}
