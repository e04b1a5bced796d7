// package tabsync propagates store state between execution contexts.
//
// A [Coordinator] represents one context. It owns the origin id, the registry
// of synced stores and the [Transport] shared with sibling contexts.
//
// Outbound, every local mutation of a registered store restarts that store's
// [Broadcaster]. When the debounce window closes, the filtered state is sent as
// a [Message].
//
// Inbound, messages pass these guards in order: shape, own origin, known
// store, conflict policy, timestamp. A message that passes is applied as a
// top-level patch. The store then stays in the syncing state for a settle
// delay, during which nothing is broadcast for it.
package tabsync
