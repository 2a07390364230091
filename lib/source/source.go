package source

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rfwd/rpc/resp"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
)

var Logger = logger.GetLogger("source")

var ErrInvalidLine = errors.New("invalid command line")

// Sink accepts commands for forwarding, implemented by sender.Pool
type Sink interface {
	Enqueue(key, db, command string) error
}

// ISource produces commands until its input ends or ctx is done
type ISource interface {
	// Run feeds every command to sink. It returns nil when the input is exhausted or ctx
	// is cancelled and the first sink error otherwise.
	Run(ctx context.Context, sink Sink) error
	// GetName returns a short description for logs
	GetName() string
	Close() error
}

// Command is one parsed input line
type Command struct {
	DB   string
	Argv []string
}

// Key returns the routing key: the first argument after the command name, or ""
func (c Command) Key() string {
	if len(c.Argv) < 2 {
		return ""
	}
	return c.Argv[1]
}

// Encode serializes the command for the wire
func (c Command) Encode() string {
	return resp.SerializeCommand(c.Argv...)
}

// ParseLine parses "<db> <COMMAND> [args...]". Blank lines and lines starting
// with '#' yield ok == false and no error.
func ParseLine(line string) (cmd Command, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Command{}, false, nil
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Command{}, false, fmt.Errorf("%w: %q has no command", ErrInvalidLine, line)
	}
	return Command{DB: fields[0], Argv: fields[1:]}, true, nil
}
