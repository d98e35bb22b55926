package parser

import (
	"regexp"
	"strings"

	"inlook-corpus/internal/email"
	"inlook-corpus/pkg/errors"
)

// fsmState is one of the five states the line parser moves through.
type fsmState string

const (
	stateNotReading          fsmState = "NotReading"
	stateHeader              fsmState = "Header"
	stateEmailPartBody       fsmState = "EmailPartBody"
	stateMIMEMultiPartHeader fsmState = "MIMEMultiPartHeader"
	stateMIMEMultiPartBody   fsmState = "MIMEMultiPartBody"
)

// headerKeyPattern matches a top-level or MIME-part header line's key and
// value.
var headerKeyPattern = regexp.MustCompile(`^([\w-]+): (.*)$`)

// multipartBoundaryPattern detects a multipart Content-Type value and
// captures its boundary token.
var multipartBoundaryPattern = regexp.MustCompile(`(?i)\s*multipart/.*?boundary="?([^";\s]+)"?`)

// boundaryHeaderKey is the synthetic header key a MIME part's opening
// boundary line is recorded under.
const boundaryHeaderKey = "Boundary"

// fsm accumulates one email.Record from a line-by-line feed. The zero
// value is not usable; build one with newFSM.
type fsm struct {
	state fsmState
	rec   *email.Record

	curKey  string
	curVal  string
	haveKey bool

	isMultipart bool
	boundary    string

	bodyLines []string

	parts         []email.Part
	partHeaders   map[string][]string
	partCurKey    string
	partCurVal    string
	partHaveKey   bool
	partBodyLines []string
}

func newFSM(rec *email.Record) *fsm {
	return &fsm{state: stateNotReading, rec: rec, partHeaders: make(map[string][]string)}
}

// FeedLine processes one line, re-dispatching internally until the line is
// consumed (a state handler may hand an unconsumed line to its
// newly-entered state, mirroring the "return 0 means re-dispatch" line
// protocol).
func (f *fsm) FeedLine(line string) {
	for {
		consumed := f.dispatch(line)
		if consumed {
			return
		}
	}
}

// dispatch runs the handler for the current state and returns whether the
// line was consumed (true) or must be re-dispatched to the (possibly new)
// current state (false).
func (f *fsm) dispatch(line string) bool {
	switch f.state {
	case stateNotReading:
		return f.handleNotReading(line)
	case stateHeader:
		return f.handleHeader(line)
	case stateEmailPartBody:
		return f.handleEmailPartBody(line)
	case stateMIMEMultiPartHeader:
		return f.handleMIMEMultiPartHeader(line)
	case stateMIMEMultiPartBody:
		return f.handleMIMEMultiPartBody(line)
	default:
		return true
	}
}

func (f *fsm) handleNotReading(line string) bool {
	if line == "" {
		return true
	}
	f.state = stateHeader
	return false // re-dispatch to Header
}

func isContinuation(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

func (f *fsm) flushTopHeader() {
	if !f.haveKey {
		return
	}
	f.rec.SetHeader(f.curKey, f.curVal)
	if m := multipartBoundaryPattern.FindStringSubmatch(f.curVal); m != nil {
		f.isMultipart = true
		f.boundary = m[1]
	}
	f.curKey, f.curVal, f.haveKey = "", "", false
}

func (f *fsm) handleHeader(line string) bool {
	switch {
	case isContinuation(line) && f.haveKey:
		f.curVal += strings.TrimLeft(line, " \t")
		return true

	case line == "":
		f.flushTopHeader()
		if f.isMultipart {
			f.state = stateMIMEMultiPartHeader
		} else {
			f.rec.SetStandardBody("")
			f.state = stateEmailPartBody
		}
		return true

	default:
		if m := headerKeyPattern.FindStringSubmatch(line); m != nil {
			f.flushTopHeader()
			f.curKey, f.curVal, f.haveKey = m[1], m[2], true
			return true
		}
		// Malformed line in a header block: treat as a continuation of
		// whatever key is open, matching the "continuation on the first
		// line" boundary behavior for degenerate input.
		if f.haveKey {
			f.curVal += line
		}
		return true
	}
}

func (f *fsm) handleEmailPartBody(line string) bool {
	f.bodyLines = append(f.bodyLines, line)
	return true
}

func (f *fsm) flushPartHeader() {
	if !f.partHaveKey {
		return
	}
	f.partHeaders[f.partCurKey] = append(f.partHeaders[f.partCurKey], f.partCurVal)
	f.partCurKey, f.partCurVal, f.partHaveKey = "", "", false
}

func (f *fsm) handleMIMEMultiPartHeader(line string) bool {
	switch {
	case isContinuation(line) && f.partHaveKey:
		f.partCurVal += strings.TrimLeft(line, " \t")
		return true

	case !f.partHaveKey && len(f.partHeaders) == 0:
		// First line of a fresh part's header block and nothing captured
		// yet: record it verbatim as the synthetic Boundary header,
		// e.g. the "--<boundary>" opening marker line.
		f.partCurKey, f.partCurVal, f.partHaveKey = boundaryHeaderKey, line, true
		return true

	case line == "":
		f.flushPartHeader()
		f.state = stateMIMEMultiPartBody
		// The blank separator line between part headers and part body is
		// consumed here rather than re-dispatched, so it never becomes a
		// leading blank line in the part's body text.
		return true

	default:
		if m := headerKeyPattern.FindStringSubmatch(line); m != nil {
			f.flushPartHeader()
			f.partCurKey, f.partCurVal, f.partHaveKey = m[1], m[2], true
			return true
		}
		if f.partHaveKey {
			f.partCurVal += line
		}
		return true
	}
}

func (f *fsm) finishPart() {
	f.parts = append(f.parts, email.Part{
		Headers: f.partHeaders,
		Body:    strings.Join(f.partBodyLines, "\n"),
	})
	f.partHeaders = make(map[string][]string)
	f.partCurKey, f.partCurVal, f.partHaveKey = "", "", false
	f.partBodyLines = nil
}

func (f *fsm) handleMIMEMultiPartBody(line string) bool {
	switch line {
	case "--" + f.boundary:
		f.finishPart()
		f.state = stateMIMEMultiPartHeader
		return true
	case "--" + f.boundary + "--":
		// Terminal boundary: the marker itself is not part payload. The
		// accumulated part is emitted uniformly by Flush at EOF, the same
		// path used when a closing boundary is missing entirely.
		return true
	default:
		f.partBodyLines = append(f.partBodyLines, line)
		return true
	}
}

// Flush finalizes the record at end of input. It returns a
// MalformedEmail error (and performs no further mutation) if the FSM is
// not in one of the two body states when EOF is reached.
func (f *fsm) Flush() error {
	switch f.state {
	case stateEmailPartBody:
		f.rec.SetStandardBody(strings.Join(f.bodyLines, "\n"))
		return nil
	case stateMIMEMultiPartBody:
		if f.partHaveKey || len(f.partBodyLines) > 0 || len(f.partHeaders) > 0 {
			f.finishPart()
		}
		f.rec.SetMultipartBody(f.parts)
		return nil
	default:
		return errors.MalformedEmail("flush from unexpected parser state: " + string(f.state))
	}
}
