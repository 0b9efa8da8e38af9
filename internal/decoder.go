package internal

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	dataPrefix     = "data: "
	maxEventBlock  = 1024 * 1024
	initialBufSize = 64 * 1024
)

var errDecoderExhausted = errors.New("decoder already reached the end of its stream")

// Decoder turns a Server-Sent-Events byte stream into typed events.
//
// It is single pass: events are produced lazily in arrival order, and once
// Next has returned an error (io.EOF included) every later call returns the
// same error. Create one Decoder per response body.
type Decoder struct {
	scanner *bufio.Scanner
	pending []Event
	err     error

	// Decoded and Dropped count payloads for diagnostics
	Decoded int
	Dropped int
}

// NewDecoder creates a Decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufSize), maxEventBlock)
	scanner.Split(splitEventBlocks)
	return &Decoder{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream closed
// normally and the underlying read error otherwise (context cancellation
// surfaces here).
func (d *Decoder) Next() (Event, error) {
	if d.scanner == nil {
		return nil, errDecoderExhausted
	}
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.err != nil {
			return nil, d.err
		}
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				d.err = err
			} else {
				d.err = io.EOF
			}
			continue
		}
		d.decodeBlock(d.scanner.Bytes())
	}
}

// decodeBlock queues every valid `data: ` payload of one event block.
// Other lines (comments, `event:`, `id:`) are ignored.
func (d *Decoder) decodeBlock(block []byte) {
	for _, line := range bytes.Split(block, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if !bytes.HasPrefix(line, []byte(dataPrefix)) {
			continue
		}
		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 {
			continue
		}
		ev, err := ParseEvent(payload)
		if err != nil {
			d.Dropped++
			LogDebug("Dropping stream payload: %v", err)
			continue
		}
		d.Decoded++
		d.pending = append(d.pending, ev)
	}
}

// splitEventBlocks is a bufio.SplitFunc yielding blocks separated by a
// blank line. A trailing block without delimiter is flushed at EOF.
func splitEventBlocks(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i, n := blockDelimiter(data); i >= 0 {
		return i + n, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func blockDelimiter(data []byte) (index, width int) {
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf < 0 || (lf >= 0 && lf < crlf):
		return lf, 2
	default:
		return crlf, 4
	}
}
