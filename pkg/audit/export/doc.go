// Package export writes audit entries as JSON or CSV for external review.
package export
