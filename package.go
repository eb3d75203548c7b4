// Package coscope provides a cooperative task runtime and a bridge
// that turns callback-based producer APIs into scoped leases.
//
// Many native libraries hand out an object through a callback and
// destroy it as soon as the callback returns. Lifting that object out
// of the callback normally means writing the rest of the program
// inside it. coscope runs the producer in its own task and parks the
// producer inside the callback until the caller releases the lease,
// so the object stays valid for exactly the caller's scope.
//
// Key components:
//
//   - Task: a coroutine-like unit of work. Exactly one task runs at a
//     time; tasks switch only when they park on a slot, wait group,
//     timer or I/O request.
//
//   - Schedule: owns the I/O dispatcher and options, and drives the
//     run queue, timers and I/O completions from Resume.
//
//   - Slot: a single-slot channel (Set, Wait, Clear, IsSet) used for
//     handoff between tasks. Last write wins; there is no queue.
//
//   - Lease, Open and With: the callback-to-scope adapter. The value
//     delivered to the producer's callback is borrowed by the lease
//     until Release, after which the producer resumes and cleans up.
//
//   - IODispatch, PoolDispatch: off-loop execution of blocking calls
//     through batched I/O requests.
//
//   - Synchronization primitives: WaitGroup and ErrGroup.
package coscope
