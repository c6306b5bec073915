package parser

import (
	"bufio"
	"bytes"
	"context"
	"html"
	"io"

	"github.com/logflow/caseline/internal/model"
)

// XES attribute keys.
var (
	xesConceptName = []byte("concept:name")
	xesTimeStamp   = []byte("time:timestamp")
	xesOrgResource = []byte("org:resource")
	xesLifecycleTr = []byte("lifecycle:transition")
)

// XML element names.
var (
	xmlLog    = []byte("log")
	xmlTrace  = []byte("trace")
	xmlEvent  = []byte("event")
	xmlString = []byte("string")
	xmlDate   = []byte("date")
	xmlInt    = []byte("int")
	xmlFloat  = []byte("float")
	xmlBool   = []byte("boolean")
	xmlID     = []byte("id")
)

type xesState uint8

const (
	stateInit xesState = iota
	stateLog
	stateTrace
	stateEvent
)

// XESParser implements streaming XES parsing using a state machine.
//
// Events are buffered per trace and emitted when the trace closes, so a
// trace-level concept:name that follows the trace's events still applies.
type XESParser struct {
	cfg Config
}

// NewXESParser creates a new XES parser.
func NewXESParser(cfg Config) *XESParser {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64 * 1024
	}
	return &XESParser{cfg: cfg}
}

// Parse implements the Parser interface.
func (p *XESParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)

	state := stateInit
	var caseID string
	var pending []*model.Event
	var current *model.Event

	flush := func() error {
		for _, ev := range pending {
			ev.CaseID = caseID
			select {
			case out <- ev:
			case <-ctx.Done():
				return ErrContextCanceled
			}
		}
		pending = pending[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ErrContextCanceled
		default:
		}

		line, err := reader.ReadBytes('>')
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) == 0 && err == io.EOF {
			break
		}

		line = trimToTag(line)
		if len(line) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}

		switch {
		case isOpenTag(line, xmlLog):
			state = stateLog

		case isOpenTag(line, xmlTrace):
			state = stateTrace
			caseID = ""

		case isCloseTag(line, xmlTrace):
			if ferr := flush(); ferr != nil {
				return ferr
			}
			state = stateLog
			caseID = ""

		case isOpenTag(line, xmlEvent) && !isSelfClosing(line):
			state = stateEvent
			current = &model.Event{}

		case isCloseTag(line, xmlEvent):
			if current != nil {
				pending = append(pending, current)
				current = nil
			}
			state = stateTrace

		case state == stateTrace && isAttributeTag(line):
			if key, value := extractAttribute(line); bytes.Equal(key, xesConceptName) {
				caseID = html.UnescapeString(string(value))
			}

		case state == stateEvent && isAttributeTag(line) && current != nil:
			p.processEventAttribute(line, current)
		}

		if err == io.EOF {
			break
		}
	}

	return flush()
}

// trimToTag drops character data preceding the tag in a '>'-terminated chunk.
func trimToTag(chunk []byte) []byte {
	if idx := bytes.IndexByte(chunk, '<'); idx >= 0 {
		return bytes.TrimSpace(chunk[idx:])
	}
	return nil
}

// isOpenTag checks if line is an opening tag for the given element.
func isOpenTag(line, element []byte) bool {
	if len(line) < len(element)+2 || line[0] != '<' {
		return false
	}
	if !bytes.HasPrefix(line[1:], element) {
		return false
	}
	next := 1 + len(element)
	if next >= len(line) {
		return true
	}
	c := line[next]
	return c == '>' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/'
}

// isCloseTag checks if line is a closing tag for the given element.
func isCloseTag(line, element []byte) bool {
	if len(line) < len(element)+3 {
		return false
	}
	if line[0] == '<' && line[1] == '/' {
		return bytes.HasPrefix(line[2:], element)
	}
	return isOpenTag(line, element) && isSelfClosing(line)
}

func isSelfClosing(line []byte) bool {
	return len(line) >= 2 && line[len(line)-2] == '/' && line[len(line)-1] == '>'
}

// isAttributeTag checks if line is an XES attribute element.
func isAttributeTag(line []byte) bool {
	if len(line) < 3 || line[0] != '<' {
		return false
	}
	for _, el := range [][]byte{xmlString, xmlDate, xmlInt, xmlFloat, xmlBool, xmlID} {
		if isOpenTag(line, el) {
			return true
		}
	}
	return false
}

// extractAttribute extracts key and value from an XES attribute element.
func extractAttribute(line []byte) (key, value []byte) {
	return extractAttrValue(line, []byte(`key="`)), extractAttrValue(line, []byte(`value="`))
}

// extractAttrValue extracts an XML attribute value.
func extractAttrValue(line, prefix []byte) []byte {
	idx := bytes.Index(line, prefix)
	if idx < 0 {
		return nil
	}
	start := idx + len(prefix)
	end := bytes.IndexByte(line[start:], '"')
	if end < 0 {
		return nil
	}
	return line[start : start+end]
}

// processEventAttribute maps the standard XES keys onto the event.
func (p *XESParser) processEventAttribute(line []byte, event *model.Event) {
	key, value := extractAttribute(line)
	if key == nil || value == nil {
		return
	}
	v := html.UnescapeString(string(value))

	switch {
	case bytes.Equal(key, xesConceptName):
		event.Activity = v
	case bytes.Equal(key, xesLifecycleTr):
		event.Transition = model.ParseTransition(v)
	case bytes.Equal(key, xesTimeStamp):
		if ts, err := ParseTimestamp(v, p.cfg.TimestampFormat); err == nil {
			event.Timestamp = ts
		}
	case bytes.Equal(key, xesOrgResource):
		event.Resource = v
	}
}
