package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/tax"
)

// Extractor turns an uploaded image into line items. Implementations never
// fail; a degraded extraction yields a visible placeholder item instead.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mediaType string, shop domain.ShopType) []domain.LineItem
}

// RecordStore persists completed ledger records per identity.
type RecordStore interface {
	Load(username string) []domain.LedgerRecord
	Append(username string, record domain.LedgerRecord) ([]domain.LedgerRecord, error)
}

// Controller owns all mutable session state and is the only mutator of it.
// All methods are safe for concurrent use; SubmitImage is the only long
// running call and holds the lock only around state changes, never across the
// extraction call or stage dwells.
type Controller struct {
	extractor Extractor
	records   RecordStore
	log       zerolog.Logger
	clock     func() time.Time
	newID     func() string
	dwell     map[Stage]time.Duration

	mu      sync.Mutex
	step    Step
	stage   Stage
	profile *domain.UserProfile
	history []domain.LedgerRecord
	image   []byte
	media   string
	items   []domain.LineItem
	taxes   *domain.TaxBreakdown
	run     uint64 // bumped whenever in-progress work is discarded
}

// Option customizes a Controller, mainly for tests.
type Option func(*Controller)

// WithStageDwell overrides the cosmetic stage dwell times.
func WithStageDwell(d map[Stage]time.Duration) Option {
	return func(c *Controller) { c.dwell = d }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithIDFunc overrides record/item ID generation.
func WithIDFunc(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// New creates a controller in the LoggedOut step.
func New(extractor Extractor, records RecordStore, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		extractor: extractor,
		records:   records,
		log:       log,
		clock:     time.Now,
		newID:     uuid.NewString,
		dwell:     defaultDwell,
		step:      StepLoggedOut,
		stage:     StageIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login accepts any non-empty credential pair. This is intentionally not a
// security boundary; the password is checked for presence and dropped.
func (c *Controller) Login(username, password string) (domain.UserProfile, error) {
	if username == "" || password == "" {
		return domain.UserProfile{}, fmt.Errorf("Login: username and password must be non-empty")
	}

	history := c.records.Load(username)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepLoggedOut {
		return domain.UserProfile{}, fmt.Errorf("Login: already logged in")
	}

	profile := domain.NewUserProfile(username)
	c.profile = &profile
	c.history = history
	c.step = StepIdle

	c.log.Info().Str("username", username).Int("records", len(history)).Msg("User logged in")
	return profile, nil
}

// Logout discards the session: profile, loaded history and any in-progress
// scan state. Persisted storage is untouched.
func (c *Controller) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.run++
	c.profile = nil
	c.history = nil
	c.clearScanStateLocked()
	c.step = StepLoggedOut
}

// NewScan moves from Idle to AwaitingUpload.
func (c *Controller) NewScan() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepIdle {
		return fmt.Errorf("NewScan: cannot start a scan from step %s", c.step)
	}
	c.step = StepAwaitingUpload
	return nil
}

// SubmitImage runs the processing pipeline for an uploaded image: the fixed
// cosmetic stage sequence with the one real extraction call during the
// structuring stage. The observer, if non-nil, is notified as each stage
// begins. SubmitImage blocks until processing finishes or the run is
// cancelled; a cancellation discards the extraction result silently.
func (c *Controller) SubmitImage(ctx context.Context, image []byte, mediaType string, observer func(Stage)) error {
	c.mu.Lock()
	if c.step != StepAwaitingUpload {
		c.mu.Unlock()
		return fmt.Errorf("SubmitImage: cannot process an image from step %s", c.step)
	}
	c.step = StepProcessing
	c.image = image
	c.media = mediaType
	shop := c.profile.ShopType
	token := c.run
	c.mu.Unlock()

	for _, stage := range []Stage{StageDetection, StageCropping, StageRecognition} {
		if !c.enterStage(token, stage, observer) {
			return nil
		}
		time.Sleep(c.dwell[stage])
	}

	if !c.enterStage(token, StageStructuring, observer) {
		return nil
	}
	items := c.extractor.Extract(ctx, image, mediaType, shop)

	// The run token may have moved on while the remote call was in flight;
	// a late result must be discarded, not applied.
	c.mu.Lock()
	if c.run != token {
		c.mu.Unlock()
		c.log.Info().Msg("Extraction result discarded after cancellation")
		return nil
	}
	c.items = items
	c.mu.Unlock()

	if !c.enterStage(token, StageSaving, observer) {
		return nil
	}
	time.Sleep(c.dwell[StageSaving])

	if !c.enterStage(token, StageComplete, observer) {
		return nil
	}
	time.Sleep(c.dwell[StageComplete])

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != token {
		return nil
	}
	c.step = StepVerifying
	c.log.Info().Int("items", len(c.items)).Msg("Processing complete, awaiting verification")
	return nil
}

// enterStage records the new cosmetic stage and notifies the observer.
// It returns false when the run has been cancelled.
func (c *Controller) enterStage(token uint64, stage Stage, observer func(Stage)) bool {
	c.mu.Lock()
	if c.run != token {
		c.mu.Unlock()
		return false
	}
	c.stage = stage
	c.mu.Unlock()

	if observer != nil {
		observer(stage)
	}
	return true
}

// AddItem appends a blank row during verification and returns it.
func (c *Controller) AddItem() (domain.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepVerifying {
		return domain.LineItem{}, fmt.Errorf("AddItem: not verifying")
	}
	item := domain.LineItem{
		ID:   c.newID(),
		Date: c.clock().Format("2006-01-02"),
	}
	c.items = append(c.items, item)
	return item, nil
}

// UpdateItem edits one row during verification.
func (c *Controller) UpdateItem(item domain.LineItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepVerifying {
		return fmt.Errorf("UpdateItem: not verifying")
	}
	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i] = item
			return nil
		}
	}
	return fmt.Errorf("UpdateItem: no item with id %s", item.ID)
}

// RemoveItem deletes one row during verification.
func (c *Controller) RemoveItem(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepVerifying {
		return fmt.Errorf("RemoveItem: not verifying")
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("RemoveItem: no item with id %s", id)
}

// ConfirmItems accepts the (possibly edited) item list and computes the tax
// breakdown. An empty list is permitted.
func (c *Controller) ConfirmItems(items []domain.LineItem) (domain.TaxBreakdown, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepVerifying {
		return domain.TaxBreakdown{}, fmt.Errorf("ConfirmItems: cannot confirm from step %s", c.step)
	}
	c.items = items
	breakdown := tax.Compute(items)
	c.taxes = &breakdown
	c.step = StepComputingTax
	return breakdown, nil
}

// AcceptTax accepts the computed breakdown and moves to the final preview.
func (c *Controller) AcceptTax() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepComputingTax {
		return fmt.Errorf("AcceptTax: cannot accept from step %s", c.step)
	}
	c.step = StepPreviewingFinal
	return nil
}

// Save constructs the ledger record from the in-progress state, appends it to
// the user's history and resets to Idle. A storage failure is logged and
// degrades to an empty in-memory history; the workflow still completes.
func (c *Controller) Save() ([]domain.LedgerRecord, error) {
	c.mu.Lock()
	if c.step != StepPreviewingFinal {
		c.mu.Unlock()
		return nil, fmt.Errorf("Save: cannot save from step %s", c.step)
	}
	record := domain.LedgerRecord{
		ID:        c.newID(),
		CreatedAt: c.clock(),
		Items:     c.items,
		Tax:       *c.taxes,
	}
	username := c.profile.Username
	c.mu.Unlock()

	updated, err := c.records.Append(username, record)
	if err != nil {
		c.log.Error().Err(err).Str("username", username).Msg("Failed to save record")
		updated = []domain.LedgerRecord{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.run++
	c.history = updated
	c.clearScanStateLocked()
	c.step = StepIdle

	c.log.Info().Str("record_id", record.ID).Float64("total", record.Tax.Total).Msg("Record saved")
	return updated, nil
}

// Cancel unconditionally discards any in-progress scan and returns to Idle.
// It is a logical reset: an extraction call still in flight will have its
// result dropped when it resolves.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !inProgress(c.step) {
		return
	}
	c.run++
	c.clearScanStateLocked()
	c.step = StepIdle
	c.log.Info().Msg("Scan cancelled")
}

// SetShopType updates the profile's business category.
func (c *Controller) SetShopType(t domain.ShopType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.profile == nil {
		return fmt.Errorf("SetShopType: not logged in")
	}
	if !t.Valid() {
		return fmt.Errorf("SetShopType: unknown shop type %q", t)
	}
	c.profile.ShopType = t
	return nil
}

// clearScanStateLocked wipes image, items and tax. Caller holds the lock.
func (c *Controller) clearScanStateLocked() {
	c.image = nil
	c.media = ""
	c.items = nil
	c.taxes = nil
	c.stage = StageIdle
}

// Step returns the current workflow step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Stage returns the current cosmetic processing stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Profile returns a copy of the logged-in profile, or nil.
func (c *Controller) Profile() *domain.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

// History returns a copy of the loaded record history, newest first.
func (c *Controller) History() []domain.LedgerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LedgerRecord, len(c.history))
	copy(out, c.history)
	return out
}

// Snapshot returns a consistent view of the session for status endpoints.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Step:  c.step,
		Stage: c.stage,
		Items: make([]domain.LineItem, len(c.items)),
	}
	copy(snap.Items, c.items)
	if c.profile != nil {
		p := *c.profile
		snap.Profile = &p
	}
	if c.taxes != nil {
		t := *c.taxes
		snap.Tax = &t
	}
	return snap
}
