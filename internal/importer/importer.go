// Package importer turns CSV and XLSX files into flat records. Every cell is
// kept as its raw string; interpretation is left to the field resolver.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/models"
)

const (
	batchSize  = 5000
	maxWorkers = 8
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoRows            = errors.New("no data rows")
)

// Table is a header row plus the raw data rows under it.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Result is an imported file.
type Result struct {
	Records []models.Record
	Headers []string
	Mapping models.Mapping
	Skipped int
}

// Load reads path, picking the reader from its extension, and converts the
// rows into records.
func Load(ctx context.Context, path string) (*Result, error) {
	var (
		t   *Table
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		t, err = LoadCSV(path)
	case ".xlsx", ".xlsm":
		t, err = LoadXLSX(path)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Ext(path), ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	records, skipped, err := t.Records(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return &Result{
		Records: records,
		Headers: t.Headers,
		Mapping: DetectMapping(t.Headers),
		Skipped: skipped,
	}, nil
}

func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a delimited text file. The delimiter is whichever of ';',
// ',' or tab appears most often in the header line.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	first, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if i := strings.IndexByte(string(first), '\n'); i >= 0 {
		first = first[:i]
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(string(first))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return newTable(rows)
}

func detectDelimiter(header string) rune {
	best, count := ',', strings.Count(header, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(header, string(d)); n > count {
			best, count = d, n
		}
	}
	return best
}

// LoadXLSX reads the first sheet of a workbook. Cells come back unformatted
// so dates stay spreadsheet serials.
func LoadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return newTable(rows)
}

func newTable(rows [][]string) (*Table, error) {
	// leading blank lines are common in exported reports
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &Table{Headers: headers(rows[0]), Rows: rows[1:]}, nil
}

func headers(row []string) []string {
	out := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, h := range row {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = h + "_" + strconv.Itoa(n)
		}
		out[i] = h
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Records converts the rows in parallel batches. Blank rows are skipped and
// counted; cells beyond the header width are dropped.
func (t *Table) Records(ctx context.Context) ([]models.Record, int, error) {
	out := make([]models.Record, len(t.Rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for start := 0; start < len(t.Rows); start += batchSize {
		end := min(start+batchSize, len(t.Rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%512 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out[i] = t.record(t.Rows[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	records := out[:0]
	skipped := 0
	for _, rec := range out {
		if rec == nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func (t *Table) record(row []string) models.Record {
	if blank(row) {
		return nil
	}
	rec := make(models.Record, len(t.Headers))
	for i, h := range t.Headers {
		if i >= len(row) {
			break
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			rec[h] = v
		}
	}
	return rec
}

// DetectMapping proposes a column for every logical field whose alias matches
// a header. The first matching header wins.
func DetectMapping(headers []string) models.Mapping {
	m := make(models.Mapping)
	for _, h := range headers {
		f, ok := fields.Match(h)
		if !ok {
			continue
		}
		if _, taken := m[f]; !taken {
			m[f] = h
		}
	}
	return m
}
