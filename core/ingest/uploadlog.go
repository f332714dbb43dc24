package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

var ErrLogNotFound = errors.New("log file not found")

const logExt = ".txt"

func logFileName(startedAt time.Time, runID string) string {
	return fmt.Sprintf("upload-log-%s-%s%s", startedAt.UTC().Format("20060102-150405"), runID, logExt)
}

// renderLog builds the plain-text report of one upload run.
func renderLog(res Result, fileName string, startedAt time.Time) []byte {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "BULK UPLOAD LOG")
	fmt.Fprintf(&buf, "Run ID:      %s\n", res.RunID)
	fmt.Fprintf(&buf, "File:        %s\n", fileName)
	fmt.Fprintf(&buf, "Started at:  %s\n", startedAt.UTC().Format(time.RFC3339))
	status := "COMPLETED"
	if res.Failed {
		status = "FAILED (no records were saved)"
	}
	fmt.Fprintf(&buf, "Status:      %s\n\n", status)

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Summary", "Count"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"Total records", strconv.Itoa(res.TotalRecords)})
	table.Append([]string{"Successful inserts", strconv.Itoa(res.SuccessfulInserts)})
	table.Append([]string{"Rows with validation errors", strconv.Itoa(res.InvalidRows())})
	table.Append([]string{"Validation errors", strconv.Itoa(len(res.ValidationErrors))})
	table.Append([]string{"Duplicate records", strconv.Itoa(len(res.DuplicateRecords))})
	table.Render()

	if res.Failed {
		fmt.Fprintf(&buf, "\nFAILURE\n  %s\n", res.FailureReason)
	}

	if len(res.ValidationErrors) > 0 {
		fmt.Fprintln(&buf, "\nVALIDATION ERRORS")
		currRow := 0
		for _, e := range res.ValidationErrors {
			if e.Row != currRow {
				currRow = e.Row
				fmt.Fprintf(&buf, "Row %d:\n", e.Row)
			}
			fmt.Fprintf(&buf, "  - %s: %s", FieldLabel(e.Field), e.Message)
			if e.Value != "" {
				fmt.Fprintf(&buf, " (value: %q)", e.Value)
			}
			fmt.Fprintln(&buf)
		}
	}

	if len(res.DuplicateRecords) > 0 {
		fmt.Fprintln(&buf, "\nDUPLICATE RECORDS")
		for _, d := range res.DuplicateRecords {
			fmt.Fprintf(&buf, "Row %d: %s\n", d.Row, d.Message)
		}
	}
	return buf.Bytes()
}

func writeLog(dir, name string, content []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, name), content, 0o644), "writing log file")
}

// LogPath returns the location of an upload log. Names with path elements are rejected.
func (svc *Service) LogPath(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) || !strings.HasSuffix(name, logExt) {
		return "", ErrLogNotFound
	}
	path := filepath.Join(svc.logDir, name)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrLogNotFound
		}
		return "", errors.Wrap(err, "checking log file")
	}
	if fi.IsDir() {
		return "", ErrLogNotFound
	}
	return path, nil
}
