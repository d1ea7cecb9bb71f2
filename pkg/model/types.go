package model

// RiskLevel is an ordered severity tier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels: low < medium < high. Unknown levels rank below low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the defined levels.
func (r RiskLevel) Valid() bool {
	return r.Rank() > 0
}

// MaxRisk returns the most severe of the given levels, or RiskLow when none
// are given.
func MaxRisk(levels ...RiskLevel) RiskLevel {
	max := RiskLow
	for _, l := range levels {
		if l.Rank() > max.Rank() {
			max = l
		}
	}
	return max
}

// RedactionMode is the strategy used to hide a sensitive value.
type RedactionMode string

const (
	// ModeMask keeps a configured prefix/suffix and stars out the rest.
	ModeMask RedactionMode = "mask"
	// ModeGeneralize replaces the value with a category token such as [SSN].
	ModeGeneralize RedactionMode = "generalize"
	// ModeRefuse replaces the value with a fixed placeholder.
	ModeRefuse RedactionMode = "refuse"
)

// Valid reports whether m is a known redaction mode.
func (m RedactionMode) Valid() bool {
	switch m {
	case ModeMask, ModeGeneralize, ModeRefuse:
		return true
	}
	return false
}

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	StatusPending      RunStatus = "pending"
	StatusRunning      RunStatus = "running"
	StatusAwaitingHITL RunStatus = "awaiting_hitl"
	StatusCompleted    RunStatus = "completed"
	StatusFailed       RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StageName identifies one pipeline stage.
type StageName string

const (
	StageClassify StageName = "classify"
	StageExtract  StageName = "extract"
	StageReview   StageName = "review"
	StageDraft    StageName = "draft"
)

// StageOrder is the fixed execution order of the pipeline.
var StageOrder = []StageName{StageClassify, StageExtract, StageReview, StageDraft}

// Valid reports whether s names a pipeline stage.
func (s StageName) Valid() bool {
	for _, st := range StageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// Next returns the stage that follows s, or false when s is the last stage.
func (s StageName) Next() (StageName, bool) {
	for i, st := range StageOrder {
		if st == s && i+1 < len(StageOrder) {
			return StageOrder[i+1], true
		}
	}
	return "", false
}
