package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/table"
)

const sniffSampleSize = 4096

// candidateDelimiters in preference order
var candidateDelimiters = []rune{';', ',', '|', '\t'}

// naTokens are read as missing cells
var naTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true, "n/a": true, "nan": true, "null": true,
}

var errNoColumns = errors.New("no columns to parse")

func readDelimited(data []byte, filename string) (*table.Table, error) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	if utf8.Valid(data) {
		t, err := parseText(string(data))
		if err == nil {
			return t, nil
		}
		return nil, &FormatError{File: filename, Reason: "unreadable delimited text", Err: err}
	}

	logger.WriteDebug("Ingest", "input is not UTF-8, retrying as Latin-1", zap.String("file", filename))
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder()))
	if err != nil {
		return nil, &FormatError{File: filename, Reason: "undecodable text", Err: err}
	}
	t, err := parseText(string(decoded))
	if err != nil {
		return nil, &FormatError{File: filename, Reason: "unreadable delimited text", Err: err}
	}
	return t, nil
}

// parseText tries the sniffed delimiter first and then the permissive pass
func parseText(text string) (*table.Table, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errNoColumns
	}

	if delim, ok := SniffDelimiter(text); ok {
		records, err := parseRecords(text, delim, true)
		if err == nil {
			return buildTable(records), nil
		}
		logger.WriteDebug("Ingest", "sniffed delimiter failed, falling back",
			zap.String("delimiter", string(delim)), zap.Error(err))
	}

	records, err := permissiveParse(text)
	if err != nil {
		return nil, err
	}
	return buildTable(records), nil
}

// SniffDelimiter inspects the first 4KB and returns the delimiter that splits
// every complete sample line into the same number of fields (more than one).
// When several qualify the one giving the most fields wins, then preference order.
func SniffDelimiter(text string) (rune, bool) {
	sample := text
	truncated := false
	if len(sample) > sniffSampleSize {
		sample = sample[:sniffSampleSize]
		truncated = true
	}
	lines := sampleLines(sample, truncated)
	if len(lines) == 0 {
		return 0, false
	}

	best, bestWidth := rune(0), 1
	for _, d := range candidateDelimiters {
		if !strings.ContainsRune(lines[0], d) {
			continue
		}
		width, ok := consistentWidth(lines, d)
		if ok && width > bestWidth {
			best, bestWidth = d, width
		}
	}
	return best, best != 0
}

func sampleLines(sample string, truncated bool) []string {
	raw := strings.Split(strings.ReplaceAll(sample, "\r\n", "\n"), "\n")
	if truncated && len(raw) > 1 {
		raw = raw[:len(raw)-1]
	}
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func consistentWidth(lines []string, delim rune) (int, bool) {
	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	width := -1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, false
		}
		if width == -1 {
			width = len(rec)
		} else if len(rec) != width {
			return 0, false
		}
	}
	return width, width > 1
}

// parseRecords reads every record. In strict mode a data row wider than the
// header is an error.
func parseRecords(text string, delim rune, strict bool) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if blankRecord(rec) {
			continue
		}
		if strict && len(records) > 0 && len(rec) > len(records[0]) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(records[0]), len(rec))
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errNoColumns
	}
	return records, nil
}

// permissiveParse picks the delimiter whose rows agree most with the header width
func permissiveParse(text string) ([][]string, error) {
	var (
		best      [][]string
		bestScore = -1
		lastErr   error
	)
	for _, d := range candidateDelimiters {
		records, err := parseRecords(text, d, false)
		if err != nil {
			lastErr = err
			continue
		}
		width := len(records[0])
		matching := 0
		for _, rec := range records[1:] {
			if len(rec) == width {
				matching++
			}
		}
		// a multi-column layout beats a single column
		score := matching
		if width > 1 {
			score += len(records) * 2
		}
		if score > bestScore {
			best, bestScore = records, score
		}
	}
	if best == nil {
		if lastErr == nil {
			lastErr = errNoColumns
		}
		return nil, lastErr
	}
	return best, nil
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// buildTable turns text records into a typed table. The first record is the
// header; a column is numeric when every non-missing cell parses as a float.
func buildTable(records [][]string) *table.Table {
	header := records[0]
	width := len(header)
	for _, rec := range records[1:] {
		if len(rec) > width {
			width = len(rec)
		}
	}
	labels := make([]string, width)
	copy(labels, header)

	cols := make([][]string, width)
	for _, rec := range records[1:] {
		for j := 0; j < width; j++ {
			cell := ""
			if j < len(rec) {
				cell = rec[j]
			}
			cols[j] = append(cols[j], cell)
		}
	}
	return typedTable(labels, cols, len(records)-1)
}

// typedTable infers the type of each text column
func typedTable(labels []string, cols [][]string, rows int) *table.Table {
	built := make([]*table.Column, len(labels))
	names := table.NormalizeLabels(labels)
	for j, raw := range cols {
		built[j] = &table.Column{Name: names[j], Values: typeColumn(raw, rows)}
	}
	t, _ := table.FromColumns(built)
	return t
}

func typeColumn(raw []string, rows int) []table.Value {
	values := make([]table.Value, rows)
	numbers := make([]float64, rows)
	numeric := true
	for i := 0; i < rows; i++ {
		s := ""
		if i < len(raw) {
			s = raw[i]
		}
		if naTokens[s] {
			values[i] = table.Missing()
			continue
		}
		values[i] = table.String(s)
		if numeric {
			f, ok := parsePlainFloat(s)
			if ok {
				numbers[i] = f
			} else {
				numeric = false
			}
		}
	}
	if !numeric {
		return values
	}
	for i, v := range values {
		if !v.IsMissing() {
			values[i] = table.Number(numbers[i])
		}
	}
	return values
}

func parsePlainFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
