// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - DocumentLoader: Fetches and normalises the source document
//   - Chunker: Splits document text into semantic chunks
//   - EmbeddingService: Generates vector embeddings
//   - VectorStore: Per-document vector collection storage and search
//   - LLMService: Skeleton reasoning, section prose, question answering
//   - Reranker: Reorders retrieved candidates for a query
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
