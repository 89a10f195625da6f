// Package readiness implements readiness channels, a uniform state machine
// over heterogeneous event sources, and a Dispatcher that drives a mixed set
// of them.
//
// # Channels
//
// A [Channel] is always in one of three states: [StateClosed],
// [StateWaiting], or [StateReady]. It may be polled ([Channel.Poll]) or
// waited on with a bounded timeout ([Channel.Wait]). Closing a channel is
// idempotent, wakes any blocked waiter, and is terminal: once a channel
// reports closed it never reports anything else.
//
// Channels carry payloads in one of three ways:
//   - event channels carry no data, readiness alone is the signal
//   - message channels ([MessageChannel]) yield discrete typed values
//   - stream channels ([StreamChannel]) yield runs of bytes
//
// The package provides [Always], [Never], [Timer], [Generator], [Queue],
// [Latch], and [Buffer]. Sources with no native blocking primitive may
// compose a [Poller], which implements Wait by polling with a small sleep.
// [Batch] long-polls a message channel, receiving values in batches.
//
// # Dispatcher
//
// A [Dispatcher] registers channels with a callback and a [Mode]. Channels
// registered with [ModeSync] are polled cooperatively, in registration order,
// on the goroutine calling [Dispatcher.Run]. Each channel registered with
// [ModeAsync] gets a dedicated worker goroutine, which blocks in Wait and
// invokes the callback itself. Run returns as soon as any sync channel closes,
// any callback fails, or any async worker exits; see [Dispatcher.LastChannel]
// and [Dispatcher.LastError].
//
// [Dispatcher.Stop] closes every registered channel, then drains until none
// remain, and must be called before a Dispatcher is discarded.
package readiness
