package resp

import (
	"strconv"
	"strings"
)

// SerializeCommand encodes argv as a RESP array of bulk strings
//
//	SerializeCommand("SELECT", "3") == "*2\r\n$6\r\nSELECT\r\n$1\r\n3\r\n"
func SerializeCommand(argv ...string) string {
	var sb strings.Builder

	size := 16
	for _, arg := range argv {
		size += len(arg) + 16
	}
	sb.Grow(size)

	sb.WriteByte('*')
	sb.WriteString(strconv.Itoa(len(argv)))
	sb.WriteString("\r\n")
	for _, arg := range argv {
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(len(arg)))
		sb.WriteString("\r\n")
		sb.WriteString(arg)
		sb.WriteString("\r\n")
	}
	return sb.String()
}
