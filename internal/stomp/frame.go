// Package stomp implements the subset of STOMP 1.2 framing spoken between the
// hirechat client and the broker: one text frame per WebSocket message,
// NUL-terminated, with 1.2 header escaping.
package stomp

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Command string

const (
	CmdConnect    Command = "CONNECT"
	CmdConnected  Command = "CONNECTED"
	CmdSend       Command = "SEND"
	CmdSubscribe  Command = "SUBSCRIBE"
	CmdMessage    Command = "MESSAGE"
	CmdDisconnect Command = "DISCONNECT"
	CmdError      Command = "ERROR"
)

// Well-known header names.
const (
	HdrDestination   = "destination"
	HdrSubscription  = "subscription"
	HdrID            = "id"
	HdrMessageID     = "message-id"
	HdrLogin         = "login"
	HdrPasscode      = "passcode"
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrContentType   = "content-type"
	HdrContentLength = "content-length"
	HdrMessage       = "message"
)

// Destinations the client sends to and subscribes on.
const (
	DestAddUser        = "/app/user.addUser"
	DestDisconnectUser = "/app/user.disconnectUser"
	DestHeartbeat      = "/app/heartbeat.ping"
	DestChat           = "/app/chat"
	TopicPublic        = "/topic/public"
)

// QueueDestination is the per-user private delivery queue, keyed by email.
func QueueDestination(email string) string {
	return "/user/" + email + "/queue/messages"
}

// Frame is one discrete protocol unit.
type Frame struct {
	Command Command
	Headers map[string]string
	Body    []byte
}

func NewFrame(cmd Command, body []byte) *Frame {
	return &Frame{Command: cmd, Headers: make(map[string]string), Body: body}
}

func (f *Frame) Set(key, value string) *Frame {
	f.Headers[key] = value
	return f
}

func (f *Frame) Get(key string) string {
	return f.Headers[key]
}

// Marshal renders the frame in wire form. Headers are written in sorted
// order so output is deterministic; a content-length header is added for
// non-empty bodies.
func (f *Frame) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(string(f.Command))
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Headers)+1)
	for k := range f.Headers {
		if k == HdrContentLength {
			continue // recomputed below from the actual body
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(escape(k))
		buf.WriteByte(':')
		buf.WriteString(escape(f.Headers[k]))
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		buf.WriteString(HdrContentLength)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Parse decodes a single wire frame. The first occurrence of a repeated
// header wins, per the STOMP spec.
func Parse(data []byte) (*Frame, error) {
	data = bytes.TrimLeft(data, "\r\n") // tolerate leading EOLs between frames
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return nil, fmt.Errorf("stomp: frame missing NUL terminator")
	}
	data = data[:end]

	headerEnd := bytes.Index(data, []byte("\n\n"))
	if headerEnd < 0 {
		return nil, fmt.Errorf("stomp: frame missing header terminator")
	}
	head := strings.Split(string(data[:headerEnd]), "\n")
	body := data[headerEnd+2:]

	cmd := Command(strings.TrimSuffix(head[0], "\r"))
	switch cmd {
	case CmdConnect, CmdConnected, CmdSend, CmdSubscribe, CmdMessage, CmdDisconnect, CmdError:
	default:
		return nil, fmt.Errorf("stomp: unknown command %q", head[0])
	}

	f := NewFrame(cmd, nil)
	for _, line := range head[1:] {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		sep := strings.IndexByte(line, ':')
		if sep < 0 {
			return nil, fmt.Errorf("stomp: malformed header %q", line)
		}
		key, err := unescape(line[:sep])
		if err != nil {
			return nil, err
		}
		val, err := unescape(line[sep+1:])
		if err != nil {
			return nil, err
		}
		if _, dup := f.Headers[key]; !dup {
			f.Headers[key] = val
		}
	}

	if cl := f.Get(HdrContentLength); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(body) {
			return nil, fmt.Errorf("stomp: bad content-length %q", cl)
		}
		body = body[:n]
	}
	if len(body) > 0 {
		f.Body = append([]byte(nil), body...)
	}
	return f, nil
}

func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case ':':
			b.WriteString(`\c`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("stomp: dangling escape in %q", s)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", fmt.Errorf("stomp: invalid escape \\%c", s[i])
		}
	}
	return b.String(), nil
}
