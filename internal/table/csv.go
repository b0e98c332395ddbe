package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Warning is a non-fatal problem found while reading a file
type Warning struct {
	Row     int
	Message string
}

// ReadResult is a parsed extract plus what had to be repaired on the way
type ReadResult struct {
	Table    *Table
	Encoding string
	Warnings []Warning
}

// ReadFile parses a CSV file with a header row. See Read.
func ReadFile(path string) (*ReadResult, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, err
	}
	return Read(path, data)
}

// ErrBinaryContent marks input that is not delimited text at all, such as a
// workbook saved with a .csv name.
var ErrBinaryContent = errors.New("binary content in text extract")

// Read parses CSV bytes into a string table named name. Spreadsheet exports
// often arrive as UTF-16 or Windows-1252; both are decoded to UTF-8 first.
// Rows shorter than the header are padded and longer rows truncated, each
// with a warning. Stray quotes inside unquoted fields are accepted with a
// warning; an unterminated quoted field is an error. An input with no header
// row yields a table with no columns.
func Read(name string, data []byte) (*ReadResult, error) {
	decoded, encoding, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", encoding, err)
	}
	if bytes.IndexByte(decoded, 0) >= 0 {
		return nil, ErrBinaryContent
	}

	result := &ReadResult{Encoding: encoding}

	records, err := parse(decoded, false)
	if errors.Is(err, csv.ErrBareQuote) {
		result.Warnings = append(result.Warnings, Warning{
			Row:     lineOf(err),
			Message: "stray quote in unquoted field; reading quotes literally",
		})
		records, err = parse(decoded, true)
	}
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		result.Table = New(name)
		return result, nil
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := New(name, Strings(header...)...)
	width := len(header)

	for i, row := range records[1:] {
		rowNum := i + 2
		switch {
		case len(row) < width:
			result.Warnings = append(result.Warnings, Warning{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), width),
			})
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		case len(row) > width:
			result.Warnings = append(result.Warnings, Warning{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), width),
			})
			row = row[:width]
		}
		t.Rows = append(t.Rows, row)
	}

	result.Table = t
	return result, nil
}

func parse(data []byte, lazy bool) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = lazy

	var records [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, row)
	}
}

func lineOf(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}

func decode(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], "utf-8-bom", nil
	case bytes.HasPrefix(data, bomUTF16LE):
		out, _, err := transform.Bytes(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), data)
		return out, "utf-16le", err
	case bytes.HasPrefix(data, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(), data)
		return out, "utf-16be", err
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		return out, "windows-1252", err
	}
}

// Write renders t as CSV with a header row of canonical column names.
func Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = CanonicalName(c.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
