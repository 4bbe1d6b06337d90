// Package domain defines the core business entities for longdoc.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A semantically coherent span of document text
//   - Batch: A character-budget-bounded, order-preserving group of chunks
//   - Skeleton: The evolving structured outline built across batches
//   - Report: The final synthesized document, section by section
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
