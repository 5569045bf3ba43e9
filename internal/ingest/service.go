// Package ingest reads delimited text, spreadsheets and dBase files into tables
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/table"
)

// Format is a supported input family
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
	FormatXLS       Format = "xls"
	FormatDBF       Format = "dbf"
)

// Options selects what to read from a multi-part file
type Options struct {
	Sheet string // worksheet name; empty means the first sheet
}

// FormatError reports an unsupported or unreadable file. No table accompanies it.
type FormatError struct {
	File   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.File, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Service loads input files
type Service struct{}

// NewService creates a new ingest service
func NewService() *Service {
	return &Service{}
}

// DetectFormat maps a file name to its format by extension
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".dbf":
		return FormatDBF, nil
	}
	return "", &FormatError{File: filename, Reason: "unsupported format"}
}

// Load parses the bytes of a file. The file name is only used to pick the format.
func (s *Service) Load(data []byte, filename string, opts Options) (*table.Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var t *table.Table
	switch format {
	case FormatDelimited:
		t, err = readDelimited(data, filename)
	case FormatXLSX:
		t, err = readXLSX(data, filename, opts.Sheet)
	case FormatXLS:
		t, err = readXLS(data, filename, opts.Sheet)
	case FormatDBF:
		t, err = readDBFBytes(data, filename)
	}
	if err != nil {
		logger.WriteWarning("Ingest", "failed to load file", zap.String("file", filename), zap.Error(err))
		return nil, err
	}

	t = table.NormalizeHeaders(t)
	logger.WriteInfo("Ingest", "loaded table",
		zap.String("file", filename),
		zap.String("format", string(format)),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns())),
	)
	return t, nil
}

// LoadFile reads a file from disk. dBase files are opened in place so that
// memo files next to them are found.
func (s *Service) LoadFile(path string, opts Options) (*table.Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatDBF {
		t, err := readDBFPath(path)
		if err != nil {
			return nil, err
		}
		return table.NormalizeHeaders(t), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.Load(data, filepath.Base(path), opts)
}

// SheetNames lists the worksheets of a workbook. Other formats have a single
// unnamed part and return nil.
func (s *Service) SheetNames(data []byte, filename string) ([]string, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return xlsxSheetNames(data, filename)
	case FormatXLS:
		return xlsSheetNames(data, filename)
	}
	return nil, nil
}

// SheetNamesFile is SheetNames for a file on disk
func (s *Service) SheetNamesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.SheetNames(data, filepath.Base(path))
}

// writeTemp stores data in a temporary file for readers that need a path.
// The returned cleanup removes it.
func writeTemp(data []byte, pattern string) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.Remove(tmpFile.Name()) }

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmpFile.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmpFile.Name(), cleanup, nil
}
