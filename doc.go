// Package pion is an event processing platform. It reads records in
// configurable wire formats, turns them into typed events, and pushes them
// through chains of reactors that filter, transform and store them.
//
// # Architecture
//
// The platform is built from a small set of cooperating subsystems:
//
//   - scheduler: a shared worker pool; every asynchronous task in the
//     platform, including event delivery, runs on it
//   - vocab: the term catalog; URN-named, typed terms grouped into
//     lockable namespaces, published as immutable snapshots
//   - event: the ordered, typed multimap that carries one record
//   - codec: serialization between byte streams and events, with access
//     log, JSON and XML formats built in and more loadable as plugins
//   - reactor / engine: the reaction engine routes events between
//     reactors along configured connections, with per-reactor counters
//   - server: an HTTP front end with its own protocol state machine,
//     connection pool and longest-prefix service dispatch
//   - plugin: shared-object loading and generic instance registries used
//     by codecs and reactors alike
//
// Configuration is YAML at the platform level (see the config package)
// while codec and reactor definitions are XML documents, referenced from
// the platform file inline or by path.
//
// The pion daemon in cmd/pion wires the subsystems together; each package
// is also usable on its own for embedding.
package pion
