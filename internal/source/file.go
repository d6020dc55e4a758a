package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/liquidator/internal/engine"
	"github.com/roach88/liquidator/internal/ir"
)

// Format is an event log file format.
type Format string

const (
	// FormatYAML is a YAML document with a top-level "events" list.
	FormatYAML Format = "yaml"
	// FormatJSONL is one JSON record per line. Blank lines and lines
	// starting with '#' are skipped.
	FormatJSONL Format = "jsonl"
)

// logFile is the YAML event log document.
type logFile struct {
	Events []ir.Record `yaml:"events"`
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unsupported event log extension %q (want .yaml, .yml, .jsonl or .ndjson)", filepath.Ext(path))
	}
}

// File is an event log read from disk. The file is parsed when Subscribe
// is called, so a File can be subscribed more than once.
type File struct {
	path string
}

// NewFile creates a source over the log at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Subscribe parses the file and delivers its events in order.
func (f *File) Subscribe(ctx context.Context, sink func(ir.Envelope)) error {
	envs, err := LoadFile(f.path)
	if err != nil {
		return err
	}
	return emit(ctx, envs, sink)
}

// LoadFile parses an event log file into envelopes stamped 1..n.
func LoadFile(path string) ([]ir.Envelope, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer fh.Close()

	envs, err := Decode(fh, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return envs, nil
}

// Decode parses an event log in the given format.
func Decode(r io.Reader, format Format) ([]ir.Envelope, error) {
	var (
		records []ir.Record
		err     error
	)
	switch format {
	case FormatYAML:
		records, err = decodeYAML(r)
	case FormatJSONL:
		records, err = decodeJSONL(r)
	default:
		return nil, fmt.Errorf("unsupported event log format %q", format)
	}
	if err != nil {
		return nil, err
	}

	clock := engine.NewClock()
	envs := make([]ir.Envelope, 0, len(records))
	for i, rec := range records {
		ev, err := rec.ToEvent()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		envs = append(envs, clock.Stamp(ev))
	}
	return envs, nil
}

func decodeYAML(r io.Reader) ([]ir.Record, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc logFile
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return doc.Events, nil
}

// decodeJSONL decodes each line with the YAML decoder; every JSON object
// is a valid YAML flow mapping, and this keeps strict field checking and
// the record tags in one place.
func decodeJSONL(r io.Reader) ([]ir.Record, error) {
	var records []ir.Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}

		dec := yaml.NewDecoder(bytes.NewReader(text))
		dec.KnownFields(true)
		var rec ir.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return records, nil
}

// Encode writes envelopes as an event log in the given format.
func Encode(w io.Writer, format Format, events []ir.Event) error {
	records := make([]ir.Record, len(events))
	for i, ev := range events {
		records[i] = ir.RecordOf(ev)
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(logFile{Events: records}); err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		return enc.Close()
	case FormatJSONL:
		for _, rec := range records {
			line, err := ir.MarshalRecord(rec)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported event log format %q", format)
	}
}
