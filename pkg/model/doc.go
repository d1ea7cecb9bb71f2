// Package model defines the records shared by every stage of the document
// review pipeline: documents, runs, clauses, extracted entities, policy
// violations, human-in-the-loop items and audit entries, together with the
// error taxonomy surfaced by the pipeline.
//
// All records are plain JSON-serializable structs. Stage outputs are
// append-only on a Run; extracted entities are never mutated after the
// extractor produces them (later stages add annotations instead).
package model
