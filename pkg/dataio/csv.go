// Package dataio feeds the classifiers: a CSV-backed feature store with
// random batch samplers, and a packet-capture feature extractor as an
// alternate source of fixed-length feature vectors.
package dataio

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
)

// CSVReader reads tabular float data from CSV files.
type CSVReader struct {
	file      *os.File
	reader    *csv.Reader
	hasHeader bool
	headers   []string
}

// CSVOption configures a CSV reader.
type CSVOption func(*CSVReader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) CSVOption {
	return func(r *CSVReader) {
		r.hasHeader = has
	}
}

// NewCSVReader opens a CSV file for reading.
func NewCSVReader(filename string, opts ...CSVOption) (*CSVReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := &CSVReader{
		file:      file,
		reader:    csv.NewReader(file),
		hasHeader: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			file.Close()
			return nil, err
		}
		r.headers = headers
	}

	return r, nil
}

// Headers returns the column headers.
func (r *CSVReader) Headers() []string {
	return r.headers
}

// Read returns all data as a 2D float slice. Malformed rows are skipped.
func (r *CSVReader) Read() ([][]float64, error) {
	var data [][]float64

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row, err := parseRow(record)
		if err != nil {
			continue
		}
		data = append(data, row)
	}

	return data, nil
}

// Close releases resources.
func (r *CSVReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func parseRow(record []string) ([]float64, error) {
	if len(record) == 0 {
		return nil, errors.New("empty row")
	}

	row := make([]float64, len(record))
	for i, val := range record {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, err
		}
		row[i] = f
	}
	return row, nil
}
