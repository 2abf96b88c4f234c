package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Record represents a single record of a named stream. Field values are
// kept undecoded until a column asks for them.
type Record map[string]json.RawMessage

const maxLineSize = 16 * 1024 * 1024

// Parser reads the records of one named stream out of a JSON or JSONL file.
//
// A JSON document holds streams as members of its top-level object, each an
// array of record objects:
//
//	{"data": [{"x": 1}, {"x": 2}], "other": [...]}
//
// A JSONL file holds one envelope object per line; the member named after
// the stream is the record, lines without it belong to other streams:
//
//	{"data": {"x": 1}}
type Parser struct {
	file    *os.File
	body    io.ReadCloser // decompressor, nil for plain files
	stream  string
	isJSONL bool

	// Stateful readers
	decoder   *json.Decoder
	bufReader *bufio.Reader
	scanner   *bufio.Scanner

	started bool
	inArray bool
}

// NewParser opens filename and prepares to read the records of stream.
// A trailing .zst or .gz suffix selects transparent decompression; the
// remaining extension decides between JSON and JSONL.
func NewParser(filename, stream string) (*Parser, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}

	p := &Parser{
		file:   file,
		stream: stream,
	}

	var r io.Reader = file
	base := filename
	switch {
	case strings.HasSuffix(base, ".zst"):
		zr, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "failed to open zstd stream %s", filename)
		}
		p.body = zr.IOReadCloser()
		r = p.body
		base = strings.TrimSuffix(base, ".zst")
	case strings.HasSuffix(base, ".gz"):
		gr, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "failed to open gzip stream %s", filename)
		}
		p.body = gr
		r = gr
		base = strings.TrimSuffix(base, ".gz")
	}

	p.isJSONL = strings.HasSuffix(base, ".jsonl")
	if p.isJSONL {
		p.scanner = bufio.NewScanner(r)
		p.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	} else {
		// bufio.Reader allows peeking past leading whitespace
		p.bufReader = bufio.NewReader(r)
		p.decoder = json.NewDecoder(p.bufReader)
	}
	return p, nil
}

// Close closes the decompressor, if any, and the underlying file.
func (p *Parser) Close() error {
	if p.body != nil {
		p.body.Close()
	}
	return p.file.Close()
}

// IsJSONL returns whether the parser is treating the file as JSONL
func (p *Parser) IsJSONL() bool {
	return p.isJSONL
}

// Stream returns the name of the stream being read.
func (p *Parser) Stream() string {
	return p.stream
}

// Read reads the next record of the stream. It returns io.EOF once the
// stream is exhausted.
func (p *Parser) Read() (Record, error) {
	if p.isJSONL {
		return p.readLine()
	}

	if !p.started {
		p.started = true
		if err := p.seekStream(); err != nil {
			return nil, err
		}
	}
	if !p.inArray || !p.decoder.More() {
		p.inArray = false
		return nil, io.EOF
	}

	var record Record
	if err := p.decoder.Decode(&record); err != nil {
		return nil, errors.Wrapf(err, "failed to decode record of stream %q", p.stream)
	}
	return record, nil
}

func (p *Parser) readLine() (Record, error) {
	for p.scanner.Scan() {
		line := p.scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(line, &envelope); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSONL line")
		}
		raw, ok := envelope[p.stream]
		if !ok || string(raw) == "null" {
			continue
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, errors.Wrapf(err, "record of stream %q is not an object", p.stream)
		}
		return record, nil
	}
	if err := p.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading JSONL file")
	}
	return nil, io.EOF
}

// seekStream walks the top-level object up to the member named after the
// stream and consumes its opening bracket. A document without the member
// simply has no records.
func (p *Parser) seekStream() error {
	for {
		b, err := p.bufReader.Peek(1)
		if err == io.EOF {
			return io.EOF
		}
		if err != nil {
			return errors.Wrap(err, "failed to read JSON document")
		}
		c := b[0]
		if c != ' ' && c != '\n' && c != '\t' && c != '\r' {
			break
		}
		p.bufReader.ReadByte() // consume whitespace
	}

	tok, err := p.decoder.Token()
	if err != nil {
		return errors.Wrap(err, "failed to read JSON document")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("expected top-level object, got %v", tok)
	}

	for p.decoder.More() {
		tok, err := p.decoder.Token()
		if err != nil {
			return errors.Wrap(err, "failed to read stream name")
		}
		key, ok := tok.(string)
		if !ok {
			return errors.Errorf("expected stream name, got %v", tok)
		}
		if key != p.stream {
			var skip json.RawMessage
			if err := p.decoder.Decode(&skip); err != nil {
				return errors.Wrapf(err, "failed to skip stream %q", key)
			}
			continue
		}

		tok, err = p.decoder.Token()
		if err != nil {
			return errors.Wrapf(err, "failed to read stream %q", key)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return errors.Errorf("stream %q is not an array", key)
		}
		p.inArray = true
		return nil
	}
	return nil
}

// ReadAll reads all remaining records of the stream.
func (p *Parser) ReadAll() ([]Record, error) {
	var records []Record
	for {
		record, err := p.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// Count reads the remaining records without keeping them and returns how
// many there were.
func (p *Parser) Count() (int64, error) {
	var n int64
	for {
		_, err := p.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// ForEachRecord processes each remaining record with the given function
func (p *Parser) ForEachRecord(fn func(Record) error) error {
	for {
		record, err := p.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

// Lookup follows a dotted path into the record and returns the raw value
// found there.
func (r Record) Lookup(path []string) (json.RawMessage, bool) {
	if len(path) == 0 {
		return nil, false
	}
	raw, ok := r[path[0]]
	for _, part := range path[1:] {
		if !ok {
			return nil, false
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, false
		}
		raw, ok = nested[part]
	}
	return raw, ok
}

// SplitPath splits a dotted column name into its parts.
func SplitPath(name string) []string {
	name = strings.TrimPrefix(name, ".")
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}
