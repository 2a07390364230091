/*
Package source reads commands from an input and hands them to a Sink.

Every input line (or kafka message) has the form

	<db> <COMMAND> [args...]

for example "db3 SET user:1 alice". Fields are separated by whitespace, blank
lines and lines starting with '#' are ignored. The routing key of a command is
its first argument unless the kafka message carries a key.
*/
package source
