// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentSource: Lists objects in a bucket or directory
//   - NormaliserRegistry: Decodes raw bytes into documents
//   - PostProcessorPipeline: Splits documents into chunks
//   - VectorIndex: Stores records and answers similarity queries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Embedder: Without it, only pre-computed embeddings can be stored
//     and queried.
//   - Watcher, Peeker, Updater, Counter: capability extensions a source or
//     index may implement; callers type-assert for them.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
