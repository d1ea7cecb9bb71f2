// Package extractor splits a document into clauses, detects sensitive
// entities across the whole document and maps each one back to the clause
// that contains it.
//
// Clause splitting is deterministic: heading lines (markdown headings,
// "Section 3" labels, numbered titles, all-caps titles) start a new clause.
// Documents without headings are split on blank-line paragraphs. Clauses
// tile the document exactly, so concatenating every clause's text yields
// the original content.
package extractor
