// Package queue provides the bounded command queue shared between producers
// and a sender.
//
// Features and Guarantees:
//
//   - Global FIFO: entries leave the queue in the order they were accepted,
//     across all producers.
//   - Backpressure: Enqueue blocks while the queue holds capacity entries and
//     never drops an entry. A permanently full queue starves producers.
//   - Bounded consumer wait: Dequeue takes a timeout so the consumer can
//     re-check its stop condition without busy looping.
//   - Close: wakes every waiter. Producers get ErrClosed, the consumer still
//     receives the entries that were accepted before Close.
//
// The implementation is a ring buffer guarded by one mutex with two condition
// variables, one for "not empty" (consumer) and one for "not full"
// (producers).
package queue
