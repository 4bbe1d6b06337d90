package services

import (
	"strings"

	"github.com/google/uuid"
)

// collectionPrefix namespaces pipeline collections inside a shared
// vector store deployment.
const collectionPrefix = "doc_"

// DocumentKey derives the stable document identifier for a source
// name. The same source always maps to the same key, which is what
// makes rerun detection and collection reuse possible.
func DocumentKey(sourceName string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(sourceName)).String()
}

// DeriveCollectionName maps a source name to its vector collection:
// the prefix plus the first 16 hex digits of the document key.
func DeriveCollectionName(sourceName string) string {
	hex := strings.ReplaceAll(DocumentKey(sourceName), "-", "")
	return collectionPrefix + hex[:16]
}

// SourceName reduces a source URI to the bare document name used for
// key and collection derivation: scheme and directories stripped, a
// trailing @ref stripped. Process and query derive from the same name,
// so they always agree on the collection.
func SourceName(source string) string {
	s := strings.TrimSpace(source)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimSuffix(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "@"); i > 0 {
		s = s[:i]
	}
	return s
}
