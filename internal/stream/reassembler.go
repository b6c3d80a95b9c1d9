// Package stream reassembles the relayed Dify event stream into a chat transcript.
package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Event is the payload of one `data:` frame. Empty fields were absent.
type Event struct {
	Answer         string
	ConversationID string
}

type wireEvent struct {
	Answer         json.RawMessage `json:"answer"`
	ConversationID json.RawMessage `json:"conversation_id"`
}

// Reassembler splits an event stream delivered in arbitrary chunks into events.
// Feed it with Write and call Close once the stream ends. It is not safe for
// concurrent use.
type Reassembler struct {
	pending []byte
	emit    func(Event)
}

// NewReassembler returns a Reassembler that calls emit for every decoded event, in order.
func NewReassembler(emit func(Event)) *Reassembler {
	return &Reassembler{emit: emit}
}

// Write consumes a chunk. Complete lines are processed immediately; the trailing
// partial line is kept for the next chunk. Lines are split on raw bytes, so a
// multi-byte character split across chunks is rejoined before decoding.
func (r *Reassembler) Write(p []byte) (int, error) {
	r.pending = append(r.pending, p...)
	for {
		i := bytes.IndexByte(r.pending, '\n')
		if i < 0 {
			break
		}
		r.processLine(r.pending[:i])
		r.pending = r.pending[i+1:]
	}
	// Release the consumed prefix once nothing is pending.
	if len(r.pending) == 0 {
		r.pending = nil
	}
	return len(p), nil
}

// Close processes whatever remains buffered as a final line.
func (r *Reassembler) Close() error {
	if len(r.pending) > 0 {
		r.processLine(r.pending)
		r.pending = nil
	}
	return nil
}

func (r *Reassembler) processLine(line []byte) {
	ev, ok := ParseLine(string(line))
	if ok && r.emit != nil {
		r.emit(ev)
	}
}

// ParseLine decodes a single frame. It reports false for non-data lines, the
// [DONE] sentinel, empty payloads and payloads that are not valid JSON.
func ParseLine(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return Event{}, false
	}
	payload := strings.TrimSpace(trimmed[len(dataPrefix):])
	if payload == "" || payload == doneSentinel {
		return Event{}, false
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		// Partial or malformed frames are expected; skip them.
		return Event{}, false
	}
	return Event{
		Answer:         textValue(w.Answer),
		ConversationID: stringValue(w.ConversationID),
	}, true
}

// textValue stringifies an answer delta; non-string values keep their JSON text.
func textValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
