package datastore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/your-org/iris-knn/internal/learning"
	"github.com/your-org/iris-knn/pkg/logger"
)

// headerAliases maps normalized CSV header names to record fields.
var headerAliases = map[string]string{
	"sepal_length":  learning.FieldSepalLength,
	"sepallength":   learning.FieldSepalLength,
	"sepallengthcm": learning.FieldSepalLength,
	"sepal_width":   learning.FieldSepalWidth,
	"sepalwidth":    learning.FieldSepalWidth,
	"sepalwidthcm":  learning.FieldSepalWidth,
	"petal_length":  learning.FieldPetalLength,
	"petallength":   learning.FieldPetalLength,
	"petallengthcm": learning.FieldPetalLength,
	"petal_width":   learning.FieldPetalWidth,
	"petalwidth":    learning.FieldPetalWidth,
	"petalwidthcm":  learning.FieldPetalWidth,
	"species":       learning.FieldSpecies,
	"variety":       learning.FieldSpecies,
	"class":         learning.FieldSpecies,
}

// positionalColumns is the column order of the headerless UCI iris file.
var positionalColumns = []string{
	learning.FieldSepalLength,
	learning.FieldSepalWidth,
	learning.FieldPetalLength,
	learning.FieldPetalWidth,
	learning.FieldSpecies,
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.NewReplacer(".", "_", " ", "_", "-", "_", "(cm)", "").Replace(h)
	return strings.Trim(h, "_")
}

// columnLayout works out which record field each column holds. When the
// first row is not a recognizable header and has five columns, the file is
// treated as headerless and the first row is data.
func columnLayout(first []string) (columns []string, firstIsData bool, err error) {
	columns = make([]string, len(first))
	found := make(map[string]bool, len(positionalColumns))
	for i, h := range first {
		if field, ok := headerAliases[normalizeHeader(h)]; ok {
			columns[i] = field
			found[field] = true
		}
	}
	if len(found) == len(positionalColumns) {
		return columns, false, nil
	}
	if len(first) == len(positionalColumns) {
		if _, perr := strconv.ParseFloat(strings.TrimSpace(first[0]), 64); perr == nil {
			return positionalColumns, true, nil
		}
	}
	return nil, false, fmt.Errorf("csv header %v does not name all of %v", first, positionalColumns)
}

// toRecord maps one CSV row onto a record. Short rows yield partial records
// so that the partitioner can reject them at their input position.
func toRecord(columns []string, row []string) learning.Record {
	rec := make(learning.Record, len(positionalColumns))
	for i, field := range columns {
		if field == "" || i >= len(row) {
			continue
		}
		rec[field] = row[i]
	}
	return rec
}

func openCSV(filePath string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return file, reader, nil
}

// LoadRecordsFromCSV reads an entire iris CSV file into memory.
// An empty file yields no records and no error.
func LoadRecordsFromCSV(filePath string) ([]learning.Record, error) {
	file, reader, err := openCSV(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	first, err := reader.Read()
	if err == io.EOF {
		return []learning.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns, firstIsData, err := columnLayout(first)
	if err != nil {
		return nil, err
	}

	var records []learning.Record
	if firstIsData {
		records = append(records, toRecord(columns, first))
	}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		if len(row) < len(columns) {
			logger.Warnf("Short csv row %d in %s: expected %d columns, got %d", len(records), filePath, len(columns), len(row))
		}
		records = append(records, toRecord(columns, row))
	}

	logger.Infof("Loaded %d records from %s", len(records), filePath)
	return records, nil
}

// StreamRecordsFromCSV reads an iris CSV file and streams its records
// through a channel. The record channel is closed at end of file, on error or
// when ctx is cancelled; at most one error is sent on the error channel.
func StreamRecordsFromCSV(ctx context.Context, filePath string) (<-chan learning.Record, <-chan error) {
	recordCh := make(chan learning.Record)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordCh)
		defer close(errCh)

		file, reader, err := openCSV(filePath)
		if err != nil {
			errCh <- err
			return
		}
		defer file.Close()

		first, err := reader.Read()
		if err != nil {
			if err != io.EOF {
				errCh <- fmt.Errorf("failed to read csv header: %w", err)
			}
			return
		}
		columns, firstIsData, err := columnLayout(first)
		if err != nil {
			errCh <- err
			return
		}

		send := func(rec learning.Record) bool {
			select {
			case recordCh <- rec:
				return true
			case <-ctx.Done():
				return false
			}
		}

		total := 0
		if firstIsData {
			if !send(toRecord(columns, first)) {
				return
			}
			total++
		}
		for {
			select {
			case <-ctx.Done():
				logger.Info("CSV streaming cancelled by context.")
				return
			default:
			}

			row, err := reader.Read()
			if err == io.EOF {
				logger.Infof("Successfully streamed %d records from %s", total, filePath)
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("failed to read csv record: %w", err)
				return
			}
			if len(row) < len(columns) {
				logger.Warnf("Short csv row %d in %s: expected %d columns, got %d", total, filePath, len(columns), len(row))
			}
			if !send(toRecord(columns, row)) {
				return
			}
			total++
		}
	}()

	return recordCh, errCh
}

// CollectRecords drains a record stream. It returns the first error from
// errCh, or ctx.Err() if the context ends first.
func CollectRecords(ctx context.Context, recordCh <-chan learning.Record, errCh <-chan error) ([]learning.Record, error) {
	var records []learning.Record
	for {
		select {
		case rec, ok := <-recordCh:
			if !ok {
				if err := <-errCh; err != nil {
					return nil, err
				}
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return records, nil
			}
			records = append(records, rec)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
