package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	ErrProtocol = errors.New("resp: protocol error")
)

const (
	// MaxBulkLen is the largest bulk string accepted, the proto-max-bulk-len default of the server
	MaxBulkLen = 512 * 1024 * 1024
	// MaxArrayLen is the largest array accepted
	MaxArrayLen = 1024 * 1024

	// bulk strings above this size are read in chunks instead of one allocation
	bulkChunk = 64 * 1024
)

// ReplyType is the RESP type marker of a reply
type ReplyType byte

const (
	TypeSimpleString ReplyType = '+'
	TypeError        ReplyType = '-'
	TypeInteger      ReplyType = ':'
	TypeBulkString   ReplyType = '$'
	TypeArray        ReplyType = '*'
)

// String returns the string representation of a ReplyType.
func (t ReplyType) String() string {
	switch t {
	case TypeSimpleString:
		return "simple-string"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulkString:
		return "bulk-string"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Reply is a decoded server reply
type Reply struct {
	Type  ReplyType
	Str   string   // simple string, error message or bulk string
	Int   int64    // integer replies
	Elems []*Reply // array replies
	Nil   bool     // null bulk string or null array
}

// IsError reports whether the reply is an error reply
func (r *Reply) IsError() bool {
	return r != nil && r.Type == TypeError
}

// Strings flattens the reply into an argument vector.
// Scalars yield a single element, arrays yield one element per entry
// (nested arrays are flattened, nil entries become "").
func (r *Reply) Strings() []string {
	if r == nil {
		return nil
	}
	switch r.Type {
	case TypeArray:
		out := make([]string, 0, len(r.Elems))
		for _, e := range r.Elems {
			out = append(out, e.Strings()...)
		}
		return out
	case TypeInteger:
		return []string{strconv.FormatInt(r.Int, 10)}
	default:
		return []string{r.Str}
	}
}

// ReadReply reads exactly one reply from r
func ReadReply(r *bufio.Reader) (*Reply, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrProtocol)
	}

	reply := &Reply{Type: ReplyType(line[0])}
	payload := string(line[1:])

	switch reply.Type {
	case TypeSimpleString, TypeError:
		reply.Str = payload

	case TypeInteger:
		n, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrProtocol, payload)
		}
		reply.Int = n

	case TypeBulkString:
		n, err := readLength(payload, MaxBulkLen)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			reply.Nil = true
			return reply, nil
		}
		str, err := readBulk(r, n)
		if err != nil {
			return nil, err
		}
		reply.Str = str

	case TypeArray:
		n, err := readLength(payload, MaxArrayLen)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			reply.Nil = true
			return reply, nil
		}
		reply.Elems = make([]*Reply, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			elem, err := ReadReply(r)
			if err != nil {
				return nil, err
			}
			reply.Elems = append(reply.Elems, elem)
		}

	default:
		return nil, fmt.Errorf("%w: unknown type byte %q", ErrProtocol, line[0])
	}

	return reply, nil
}

// readLength parses a bulk or array length header, -1 marks a nil value
func readLength(payload string, limit int) (int, error) {
	n, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || n < -1 {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, payload)
	}
	if n > int64(limit) {
		return 0, fmt.Errorf("%w: length %d exceeds %d", ErrProtocol, n, limit)
	}
	return int(n), nil
}

// readBulk reads n payload bytes and the trailing CRLF. The buffer grows as
// data arrives, so a length header alone never allocates more than bulkChunk.
func readBulk(r *bufio.Reader, n int) (string, error) {
	var buf bytes.Buffer
	buf.Grow(min(n, bulkChunk))
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}

	var crlf [2]byte
	if _, err := io.ReadFull(r, crlf[:]); err != nil {
		return "", err
	}
	if crlf[0] != '\r' || crlf[1] != '\n' {
		return "", fmt.Errorf("%w: bulk string not terminated by CRLF", ErrProtocol)
	}
	return buf.String(), nil
}

// readLine reads up to CRLF and returns the line without the terminator
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: line too long", ErrProtocol)
		}
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}
