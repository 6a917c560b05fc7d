package syslog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message is a parsed syslog line, in the shape spec.md §4.2 names:
// facility, severity (0-7), hostname, appName, procId, msgId, message, and
// the untouched rawMessage for audit trails.
type Message struct {
	Facility   int
	Severity   int
	Hostname   string
	AppName    string
	ProcID     string
	MsgID      string
	Message    string
	RawMessage string
	Timestamp  time.Time
	// SourceIP is the listener's peer address, set by the adapter after
	// Parse returns - Parse itself only sees the line, never the socket.
	SourceIP string
}

// Parse accepts both RFC 5424 ("<PRI>1 TIMESTAMP HOST APP PROCID MSGID ...
// MSG") and the looser RFC 3164 style ("<PRI>TIMESTAMP HOST TAG: MSG"), since
// real-world syslog senders mix both. line must not include the trailing
// newline.
func Parse(line string, receivedAt time.Time) (Message, error) {
	raw := line
	if len(line) == 0 || line[0] != '<' {
		return Message{}, fmt.Errorf("missing priority prefix")
	}
	end := strings.IndexByte(line, '>')
	if end < 0 {
		return Message{}, fmt.Errorf("unterminated priority prefix")
	}
	pri, err := strconv.Atoi(line[1:end])
	if err != nil {
		return Message{}, fmt.Errorf("invalid priority %q: %w", line[1:end], err)
	}
	facility := pri / 8
	severity := pri % 8
	rest := line[end+1:]

	msg := Message{
		Facility:   facility,
		Severity:   severity,
		RawMessage: raw,
		Timestamp:  receivedAt,
	}

	if strings.HasPrefix(rest, "1 ") {
		parseRFC5424(rest[2:], &msg)
		return msg, nil
	}
	parseRFC3164(rest, &msg)
	return msg, nil
}

// parseRFC5424 expects "TIMESTAMP HOST APP PROCID MSGID [SD] MSG". The
// structured-data block, if present, is skipped rather than parsed -
// nothing downstream consumes it yet.
func parseRFC5424(rest string, msg *Message) {
	fields := strings.SplitN(rest, " ", 6)
	if len(fields) > 1 && fields[1] != "-" {
		msg.Hostname = fields[1]
	}
	if len(fields) > 2 && fields[2] != "-" {
		msg.AppName = fields[2]
	}
	if len(fields) > 3 && fields[3] != "-" {
		msg.ProcID = fields[3]
	}
	if len(fields) > 4 && fields[4] != "-" {
		msg.MsgID = fields[4]
	}
	if len(fields) > 5 {
		body := fields[5]
		if strings.HasPrefix(body, "[") {
			if idx := strings.Index(body, "] "); idx >= 0 {
				body = body[idx+2:]
			}
		}
		msg.Message = strings.TrimSpace(body)
	}
}

// parseRFC3164 expects "TIMESTAMP HOST TAG: MSG" with a fixed-width
// timestamp ("Jan _2 15:04:05"), which is unreliable to split on spaces
// alone - so it's located and skipped by length instead.
func parseRFC3164(rest string, msg *Message) {
	rest = strings.TrimSpace(rest)
	if len(rest) > 15 {
		rest = strings.TrimSpace(rest[15:])
	}
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) > 0 {
		msg.Hostname = fields[0]
	}
	if len(fields) > 1 {
		body := fields[1]
		if idx := strings.Index(body, ": "); idx >= 0 {
			msg.AppName = strings.TrimSuffix(body[:idx], "]")
			if br := strings.IndexByte(msg.AppName, '['); br >= 0 {
				msg.ProcID = strings.TrimSuffix(msg.AppName[br+1:], "]")
				msg.AppName = msg.AppName[:br]
			}
			msg.Message = body[idx+2:]
		} else {
			msg.Message = body
		}
	}
}
