// Package policy defines the policy set that governs extraction, review and
// drafting, and the providers that supply policy sets by id.
//
// A policy set bundles the financial threshold, redaction mode defaults and
// per-type overrides, sensitivity tiers that always require human review,
// required disclaimers, forbidden-content rules and third-party sharing
// rules. Policy sets are loaded from YAML (.yaml, .yml) or TOML (.toml)
// files:
//
//	id: default
//	financial_threshold: 100000
//	redaction:
//	  default_mode: mask
//	  by_type:
//	    email: generalize
//	forbidden_content:
//	  - id: investment-advice
//	    category: investment_advice
//	    phrases: ["guaranteed return"]
//	    severity: high
//
// FileProvider serves every policy file in a directory and can watch the
// directory for changes, reloading atomically after a debounce interval.
package policy
