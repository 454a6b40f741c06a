// Package quality validates enriched partitions before they are published.
//
// Check is a pure predicate: it collects every violation instead of
// short-circuiting, so a rejected partition's log names all of its problems
// at once. A failed partition is never written to the enriched domain;
// sibling partitions are unaffected.
package quality
