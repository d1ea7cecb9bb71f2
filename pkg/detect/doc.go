// Package detect holds the pattern registry used to find sensitive values in
// document text and the redactor that hides them.
//
// Detection rules are data: each Rule names an entity type, a matcher, a
// context heuristic and a default risk level. Adding a new entity type means
// adding a table entry to DefaultRules or passing a custom rule set to
// NewRegistry.
//
// Both Detect and Redact are pure and safe for concurrent use.
package detect
