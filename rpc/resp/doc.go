// Package resp implements the subset of the Redis serialization protocol
// (RESP2) that rfwd needs: encoding commands as arrays of bulk strings and
// decoding server replies.
//
// Commands are encoded once by the producer side (see SerializeCommand) and
// travel through the queue as opaque strings; the sender never re-parses
// them. Replies are decoded by ReadReply and usually consumed via
// Reply.Strings, which flattens a reply to the argument vector form the
// sender compares against ("OK", "NOAUTH Authentication required.", ...).
package resp
