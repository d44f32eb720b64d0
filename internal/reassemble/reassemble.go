// Package reassemble implements the streaming JSON reassembler described at
// spec §4.3: the upstream response is one top-level JSON array of chunk
// objects, delivered as arbitrary byte slices that may split an element
// across many Feed calls or pack several elements into one.
//
// The teacher's pkg/internal/jsonutil/streaming.go ArrayStreamingParser
// solves an adjacent problem by re-running a best-effort "parse what we can"
// pass over the whole accumulated string on every Append — fine for a
// best-effort partial-object preview, but it reparses from scratch each call
// and never reports malformed elements individually. §4.3 instead mandates a
// single-pass character-class scanner that tracks brace depth, an
// "inside string" flag, and a "previous byte was backslash" flag, slicing
// out and parsing each balanced top-level object as soon as it closes. This
// file implements that scanner directly rather than adapting
// ArrayStreamingParser's whole-buffer reparse.
package reassemble

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

const (
	// DefaultInitialCap is the buffer's starting capacity.
	DefaultInitialCap = 4 << 10 // 4 KiB
	// DefaultSoftCap is the buffering-discipline soft upper bound: once a
	// compaction observes capacity beyond this, the buffer is reallocated
	// back down to DefaultInitialCap so long-lived workers don't retain
	// large allocations from one oversized response.
	DefaultSoftCap = 256 << 10 // 256 KiB
)

// Reassembler is the single-pass scanner. Not safe for concurrent use by
// multiple goroutines; one Reassembler belongs to exactly one in-flight
// request, matching §4.3's "tasks do not share mutable state" model.
type Reassembler struct {
	buf        []byte
	pos        int // buf[:pos] has already been classified
	objStart   int // offset of the in-progress object's '{', or -1 if none
	depth      int
	inString   bool
	escaped    bool
	initialCap int
	softCap    int
	logger     *slog.Logger
}

// New builds a Reassembler. A zero initialCap/softCap falls back to the
// package defaults. A nil logger discards dropped-chunk warnings.
func New(initialCap, softCap int, logger *slog.Logger) *Reassembler {
	if initialCap <= 0 {
		initialCap = DefaultInitialCap
	}
	if softCap <= 0 {
		softCap = DefaultSoftCap
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reassembler{
		buf:        make([]byte, 0, initialCap),
		objStart:   -1,
		initialCap: initialCap,
		softCap:    softCap,
		logger:     logger,
	}
}

// Feed appends data and returns every chunk object completed by it, in
// order. A chunk that fails to parse as JSON is logged and dropped; scanning
// resumes at the next byte, so one malformed element never corrupts the
// ones around it.
func (r *Reassembler) Feed(data []byte) []json.RawMessage {
	r.buf = append(r.buf, data...)

	var out []json.RawMessage
	for r.pos < len(r.buf) {
		b := r.buf[r.pos]

		if r.objStart == -1 {
			switch {
			case b == ' ', b == '\t', b == '\n', b == '\r', b == '[', b == ',', b == ']':
				// whitespace and array delimiters between top-level
				// elements are ignored; a top-level ']' is silently
				// consumed.
			case b == '{':
				r.objStart = r.pos
				r.depth = 1
				r.inString = false
				r.escaped = false
			default:
				// bytes before the first '[' (or any other stray byte
				// outside object framing) are skipped.
			}
			r.pos++
			continue
		}

		// Inside a candidate object.
		if r.escaped {
			r.escaped = false
			r.pos++
			continue
		}
		if r.inString {
			switch b {
			case '\\':
				r.escaped = true
			case '"':
				r.inString = false
			}
			r.pos++
			continue
		}
		switch b {
		case '"':
			r.inString = true
		case '{':
			r.depth++
		case '}':
			r.depth--
			if r.depth == 0 {
				raw := make(json.RawMessage, r.pos+1-r.objStart)
				copy(raw, r.buf[r.objStart:r.pos+1])
				if json.Valid(raw) {
					out = append(out, raw)
				} else {
					r.logger.Warn("dropping malformed upstream chunk", "bytes", len(raw))
				}
				r.objStart = -1
			}
		}
		r.pos++
	}

	r.compact()
	return out
}

// Finish signals no more bytes are coming. It reports an error if the
// buffer holds a partial, unrecoverable tail (an object that never closed).
func (r *Reassembler) Finish() error {
	if r.objStart != -1 {
		return fmt.Errorf("reassemble: unterminated chunk object at end of stream (%d bytes pending)", len(r.buf)-r.objStart)
	}
	return nil
}

// compact drops already-consumed bytes and, if the buffer has grown past
// the soft cap, reallocates it at the initial size.
func (r *Reassembler) compact() {
	if r.objStart == -1 {
		r.buf = r.buf[:0]
		r.pos = 0
		if cap(r.buf) > r.softCap {
			r.buf = make([]byte, 0, r.initialCap)
		}
		return
	}

	if r.objStart == 0 {
		return
	}
	remaining := len(r.buf) - r.objStart
	copy(r.buf, r.buf[r.objStart:])
	r.buf = r.buf[:remaining]
	r.pos -= r.objStart
	r.objStart = 0

	if cap(r.buf) > r.softCap {
		nb := make([]byte, remaining, max(r.initialCap, remaining))
		copy(nb, r.buf)
		r.buf = nb
	}
}
