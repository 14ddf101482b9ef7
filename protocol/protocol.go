package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wire format of the timestamp field: local calendar time
// with second resolution.
const TimeLayout = "2006-01-02 15:04:05"

// NoID is the sentinel identifier: "not yet authenticated" in the sender
// field, "no specific recipient" (broadcast) in the receiver field.
const NoID int64 = -1

const delimiter = "|"

// Decode errors.
var (
	ErrTruncated    = errors.New("record has fewer than 5 fields")
	ErrBadInteger   = errors.New("id field is not an integer")
	ErrBadTimestamp = errors.New("malformed timestamp")
)

// Kind is the application-level message type.
type Kind int

const (
	KindLogin Kind = iota
	KindLogout
	KindText
	KindFile
	KindStatus
	KindError
)

// String returns the canonical wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "LOGIN"
	case KindLogout:
		return "LOGOUT"
	case KindText:
		return "TEXT"
	case KindFile:
		return "FILE"
	case KindStatus:
		return "STATUS"
	case KindError:
		return "ERROR"
	}
	return "TEXT"
}

// ParseKind maps a wire token to a Kind. Matching is case-sensitive and an
// unrecognized token yields KindText, never an invalid value.
func ParseKind(s string) Kind {
	switch s {
	case "LOGIN":
		return KindLogin
	case "LOGOUT":
		return KindLogout
	case "TEXT":
		return KindText
	case "FILE":
		return KindFile
	case "STATUS":
		return KindStatus
	case "ERROR":
		return KindError
	}
	return KindText
}

// Message is one unit of communication between a client and the server.
type Message struct {
	Kind       Kind
	Content    string
	SenderID   int64
	ReceiverID int64
	Timestamp  time.Time
}

// NewMessage builds a message stamped with the current time.
func NewMessage(kind Kind, content string, senderID, receiverID int64) *Message {
	return &Message{
		Kind:       kind,
		Content:    content,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Timestamp:  time.Now(),
	}
}

// Encode serializes a message into one delimited record:
//
//	KIND|SENDER|RECEIVER|TIMESTAMP|CONTENT
//
// The content goes out verbatim as the record remainder. Records carry no
// boundary of their own; on stream transports each record travels inside a
// length-prefixed frame (see WriteFrame).
func Encode(m *Message) []byte {
	parts := []string{
		m.Kind.String(),
		strconv.FormatInt(m.SenderID, 10),
		strconv.FormatInt(m.ReceiverID, 10),
		m.Timestamp.Format(TimeLayout),
		m.Content,
	}
	return []byte(strings.Join(parts, delimiter))
}

// Decode parses one record produced by Encode. The split is capped at five
// fields, so delimiter characters past the fourth one stay in the content.
func Decode(data []byte) (*Message, error) {
	parts := strings.SplitN(string(data), delimiter, 5)
	if len(parts) < 5 {
		return nil, fmt.Errorf("%w: got %d", ErrTruncated, len(parts))
	}

	senderID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: sender %q", ErrBadInteger, parts[1])
	}
	receiverID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: receiver %q", ErrBadInteger, parts[2])
	}

	timestamp, err := time.ParseInLocation(TimeLayout, parts[3], time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadTimestamp, parts[3])
	}

	return &Message{
		Kind:       ParseKind(parts[0]),
		Content:    parts[4],
		SenderID:   senderID,
		ReceiverID: receiverID,
		Timestamp:  timestamp,
	}, nil
}
