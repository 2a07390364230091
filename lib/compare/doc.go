/*
Package compare verifies that a target store holds the same data as a source
store, database by database. It is used after a forwarding run to find keys
that were lost or diverged.
*/
package compare
