package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"lorawan-pipeline/internal/model"
)

// Column names the source header must carry. Order in the file is free; the
// reader maps header names to positions once per source.
var requiredColumns = []string{
	"device_id", "rssi", "snr", "gateway_id",
	"temperature", "humidity", "latitude", "longitude", "timestamp",
}

// maxLineBytes bounds a single physical line. Uplink rows are small; a line
// beyond this is treated as malformed rather than growing without bound.
const maxLineBytes = 1 << 20

// RowReader produces a lazy, restartable sequence of raw rows from one
// append-only CSV source. Streaming twice from the same offset reproduces
// the identical sequence.
type RowReader struct {
	path string
	cols map[string]int
}

// OpenSource verifies the source file exists and its header carries the
// required columns. Failures are ErrSourceUnavailable: the orchestrator
// reports them without advancing any checkpoint.
func OpenSource(path string) (*RowReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: %s: empty file", model.ErrSourceUnavailable, path)
	}

	header, err := splitLine(scanner.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: unreadable header: %v", model.ErrSourceUnavailable, path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, `"`, "")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s: header missing column %q", model.ErrSourceUnavailable, path, name)
		}
	}

	return &RowReader{path: path, cols: cols}, nil
}

// Stream emits one RawRow per physical line after fromLine, preserving the
// original 1-based line numbers. Line 1 is the header and is never emitted.
// The caller owns and closes out.
func (r *RowReader) Stream(ctx context.Context, fromLine int64, out chan<- model.RawRow) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrSourceUnavailable, r.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	if fromLine < 1 {
		fromLine = 1 // never re-emit the header
	}

	var line int64
	for scanner.Scan() {
		line++
		if line <= fromLine {
			continue
		}

		row := r.parseLine(line, scanner.Text())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- row:
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s at line %d: %w", r.path, line, err)
	}
	return nil
}

func (r *RowReader) parseLine(line int64, text string) model.RawRow {
	fields, err := splitLine(text)
	if err != nil || len(fields) != len(r.cols) {
		return model.RawRow{Line: line, Malformed: true}
	}
	return model.RawRow{
		Line:        line,
		DeviceID:    fields[r.cols["device_id"]],
		RSSI:        fields[r.cols["rssi"]],
		SNR:         fields[r.cols["snr"]],
		GatewayID:   fields[r.cols["gateway_id"]],
		Temperature: fields[r.cols["temperature"]],
		Humidity:    fields[r.cols["humidity"]],
		Latitude:    fields[r.cols["latitude"]],
		Longitude:   fields[r.cols["longitude"]],
		Timestamp:   fields[r.cols["timestamp"]],
	}
}

// splitLine parses one physical line as a CSV record. Parsing per line keeps
// the line-offset arithmetic exact for checkpointing.
func splitLine(text string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr.Read()
}
