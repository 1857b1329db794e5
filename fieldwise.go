// Package fieldwise resolves typed record-field values by delegating judgment
// to a language model, and lets a model drive a bounded set of pre-registered
// business actions ("tools") within one agent turn.
//
// The core pipeline:
//
//	prompt.Compile  -> snapshot.Build -> resolver.Resolve -> typed value
//
// and independently:
//
//	tool.BuildRegistry -> tool.Dispatcher.Run -> action.Resolver -> call history
//
// Persistence, access control, sanitization policy and the concrete business
// actions are external collaborators reached through the interfaces in this
// package. The module is stateless between calls.
package fieldwise
