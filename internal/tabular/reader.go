// Package tabular reads delimited text and spreadsheet files into an
// in-memory typed table, tolerant of the semicolon/comma/tab variance and
// the windows-1252 encoding common to Brazilian government exports.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/snak3gh0st/emendas-etl/internal/encoding"
)

// ErrEmptyFile is returned when the input has no rows at all, including the
// header.
var ErrEmptyFile = errors.New("tabular: file is empty")

// ErrUnsupportedExt is returned for a file extension neither .csv/.txt nor
// .xlsx.
var ErrUnsupportedExt = errors.New("tabular: unsupported file extension")

// candidateDelimiters are tried in order; the Brazilian government norm is
// semicolon, so it is tried first.
var candidateDelimiters = []rune{';', ',', '\t'}

// sniffSampleRows bounds how many rows are used to pick a delimiter.
const sniffSampleRows = 10

// Table is an in-memory, header-indexed view of one input file.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read dispatches to the delimited or spreadsheet reader based on path's
// extension.
func Read(path string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return readXLSX(path)
	case ".csv", ".txt":
		return readDelimited(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, ext)
	}
}

func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: opening xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("tabular: reading xlsx rows: %w", err)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return &Table{Header: normalizeBOM(rows[0]), Rows: rows[1:]}, nil
}

func readDelimited(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: reading file: %w", err)
	}

	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}

	label, err := encoding.Detect(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("tabular: detecting encoding: %w", err)
	}

	utf8Bytes, err := encoding.Transcode(label, raw)
	if err != nil {
		return nil, fmt.Errorf("tabular: transcoding: %w", err)
	}

	delim, err := sniffDelimiter(utf8Bytes)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(utf8Bytes))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("tabular: parsing csv: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	return &Table{Header: normalizeBOM(records[0]), Rows: records[1:]}, nil
}

// sniffDelimiter tries each candidate in order and accepts the first that
// splits the first line of the sample into at least two columns; the other
// sample lines are not checked.
func sniffDelimiter(data []byte) (rune, error) {
	lines := strings.SplitN(string(data), "\n", sniffSampleRows+1)

	for _, delim := range candidateDelimiters {
		reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
		reader.Comma = delim
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		record, err := reader.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			continue
		}

		if len(record) >= 2 {
			return delim, nil
		}
	}

	return ';', nil // fall back to the source's documented default
}

func normalizeBOM(header []string) []string {
	if len(header) == 0 {
		return header
	}

	header[0] = strings.TrimPrefix(header[0], "\xef\xbb\xbf")

	return header
}
