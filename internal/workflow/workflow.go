// Package workflow drives the scan session: a strictly linear state machine
// from login through upload, processing, verification, tax analysis and final
// preview to a saved ledger record.
package workflow

import (
	"time"

	"github.com/dvloznov/khatalens/internal/domain"
)

// Step is the current position in the scan workflow.
type Step string

const (
	StepLoggedOut       Step = "logged_out"
	StepIdle            Step = "idle"
	StepAwaitingUpload  Step = "awaiting_upload"
	StepProcessing      Step = "processing"
	StepVerifying       Step = "verifying"
	StepComputingTax    Step = "computing_tax"
	StepPreviewingFinal Step = "previewing_final"
)

// Stage is a cosmetic sub-stage of the Processing step. Only the structuring
// stage does real work (the extraction call); the rest are timed UI beats.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageDetection   Stage = "detection"
	StageCropping    Stage = "cropping"
	StageRecognition Stage = "recognition"
	StageStructuring Stage = "structuring"
	StageSaving      Stage = "saving"
	StageComplete    Stage = "complete"
)

// defaultDwell holds the fixed dwell time per cosmetic stage. The durations
// are illustrative, not derived from real work.
var defaultDwell = map[Stage]time.Duration{
	StageDetection:   1500 * time.Millisecond,
	StageCropping:    1000 * time.Millisecond,
	StageRecognition: 1200 * time.Millisecond,
	StageSaving:      800 * time.Millisecond,
	StageComplete:    500 * time.Millisecond,
}

// StageMessages maps each cosmetic stage to its progress line.
var StageMessages = map[Stage]string{
	StageDetection:   "Identifying text regions...",
	StageCropping:    "Extracting text segments...",
	StageRecognition: "Recognizing handwriting...",
	StageStructuring: "Refining with Gemini...",
	StageSaving:      "Saving to database...",
}

// inProgress reports whether s is a step that Cancel can discard.
func inProgress(s Step) bool {
	switch s {
	case StepAwaitingUpload, StepProcessing, StepVerifying, StepComputingTax, StepPreviewingFinal:
		return true
	}
	return false
}

// Snapshot is a consistent read of the session state.
type Snapshot struct {
	Step    Step                 `json:"step"`
	Stage   Stage                `json:"stage"`
	Profile *domain.UserProfile  `json:"profile,omitempty"`
	Items   []domain.LineItem    `json:"items"`
	Tax     *domain.TaxBreakdown `json:"tax,omitempty"`
}
