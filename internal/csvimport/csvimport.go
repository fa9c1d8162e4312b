// Package csvimport parses partner candidate roster files.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prepwise/partner-server-go/internal/util"
)

const (
	ColumnFirstname = "firstname"
	ColumnLastname  = "lastname"
	ColumnEmail     = "email"

	// MaxRows bounds the number of data rows accepted in one file.
	MaxRows = 5000
)

// Row-level rejection reasons.
const (
	ReasonMissingFields  = "Missing required fields"
	ReasonInvalidEmail   = "Invalid email format"
	ReasonDuplicateEmail = "Duplicate email in CSV file"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{ColumnFirstname, ColumnLastname, ColumnEmail}

var headerAliases = map[string]string{
	"first name":    ColumnFirstname,
	"first_name":    ColumnFirstname,
	"last name":     ColumnLastname,
	"last_name":     ColumnLastname,
	"email address": ColumnEmail,
	"e-mail":        ColumnEmail,
}

var ErrTooManyRows = fmt.Errorf("csv file exceeds %d data rows", MaxRows)

// HeaderError reports required columns absent from the header row.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return "missing required column(s): " + strings.Join(e.Missing, ", ")
}

// Row is a data row that passed file-level validation. Email is normalized.
type Row struct {
	Number    int
	Firstname string
	Lastname  string
	Email     string
}

type RowError struct {
	Row    int    `json:"row"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type Result struct {
	Rows   []Row
	Errors []RowError
}

// Total is the number of data rows read, valid or not.
func (r *Result) Total() int {
	return len(r.Rows) + len(r.Errors)
}

// Parse reads a roster with a header row. A missing required column fails the
// whole file with *HeaderError before any row is examined. Row numbers are the
// line numbers in the file, so the first data row is usually row 2.
func Parse(src io.Reader) (*Result, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &HeaderError{Missing: append([]string(nil), RequiredColumns...)}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := indexHeader(header)
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}

	result := &Result{}
	seen := make(map[string]bool)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if result.Total() >= MaxRows {
			return nil, ErrTooManyRows
		}

		line, _ := reader.FieldPos(0)
		row := Row{
			Number:    line,
			Firstname: field(record, columns, ColumnFirstname),
			Lastname:  field(record, columns, ColumnLastname),
			Email:     util.NormalizeEmail(field(record, columns, ColumnEmail)),
		}

		if reason := validateRow(row, seen); reason != "" {
			result.Errors = append(result.Errors, RowError{Row: row.Number, Email: row.Email, Reason: reason})
			continue
		}

		seen[row.Email] = true
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func validateRow(row Row, seen map[string]bool) string {
	var empty []string
	if row.Firstname == "" {
		empty = append(empty, ColumnFirstname)
	}
	if row.Lastname == "" {
		empty = append(empty, ColumnLastname)
	}
	if row.Email == "" {
		empty = append(empty, ColumnEmail)
	}
	if len(empty) > 0 {
		return ReasonMissingFields + ": " + strings.Join(empty, ", ")
	}

	if !util.IsValidEmail(row.Email) {
		return ReasonInvalidEmail
	}
	if seen[row.Email] {
		return ReasonDuplicateEmail
	}
	return ""
}

func indexHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	return columns
}

func field(record []string, columns map[string]int, name string) string {
	i := columns[name]
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
