// package mirror keeps an in-memory copy of a store's state in step with the durable store.
//
// A [Mirror] owns a state struct and a table of [Field] descriptors. Each field
// maps one struct member to one durable key:
//   - InitStorage loads every field, keeping defaults for keys never written
//   - Update and Patch persist every field whose JSON changed
//   - observers registered with Subscribe are told which fields changed and how
//
// Array members additionally get set-like helpers ([PushItem], [RemoveItem]).
package mirror
