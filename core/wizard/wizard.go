package wizard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoGateway    = errors.New("wizard has no submission gateway")
	ErrNotEditing   = errors.New("wizard is not editing")
	ErrNotFinalStep = errors.New("only the final step can be submitted")
	ErrNotFailed    = errors.New("no failed submission to retry")
	ErrUnknownField = errors.New("unknown field")
	ErrNotFileField = errors.New("not a file field")
	ErrWizardClosed = errors.New("wizard closed")
)

const defaultUploadTick = 200 * time.Millisecond

// Status is the terminal status shown by the UI.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
)

type phase int

const (
	phaseEditing phase = iota
	phaseSubmitting
	phaseSubmitted
	phaseFailed
)

func (p phase) status() Status {
	switch p {
	case phaseSubmitting:
		return StatusSubmitting
	case phaseSubmitted:
		return StatusSuccess
	case phaseFailed:
		return StatusFailure
	default:
		return StatusIdle
	}
}

// State is a read model of a wizard for presentational shells.
type State struct {
	Form           string            `json:"form"`
	Step           int               `json:"step"`
	TotalSteps     int               `json:"total_steps"`
	Title          string            `json:"title"`
	Fields         []string          `json:"fields"`
	Status         Status            `json:"status"`
	Errors         map[string]string `json:"errors"`
	Draft          Values            `json:"draft"`
	UploadProgress map[string]int    `json:"upload_progress"`
	Message        string            `json:"message,omitempty"`
	ReceiptID      string            `json:"receipt_id,omitempty"`
}

type Option func(*Wizard)

// WithName sets the form name reported in events and passed to the gateway.
func WithName(name string) Option {
	return func(w *Wizard) { w.name = name }
}

// WithUploadTick sets the interval of simulated upload progress.
func WithUploadTick(d time.Duration) Option {
	return func(w *Wizard) {
		if d > 0 {
			w.uploadTick = d
		}
	}
}

// Wizard drives a multi-step form: it owns the draft, validates the current step
// before advancing and hands the completed draft to its Gateway.
// All methods are safe for concurrent use; calls are serialized.
type Wizard struct {
	mu         sync.Mutex
	name       string
	steps      []Step
	fields     map[string]Field
	gateway    Gateway
	hub        *Hub
	uploadTick time.Duration

	phase   phase
	step    int
	draft   *Draft
	failure string
	receipt Receipt
	uploads map[string]chan struct{} // file field -> stop
	closed  bool
}

// New builds a wizard at step 1 with an empty draft. steps are copied.
func New(gateway Gateway, steps []Step, opts ...Option) (*Wizard, error) {
	if gateway == nil {
		return nil, ErrNoGateway
	}
	if err := CheckSteps(steps); err != nil {
		return nil, err
	}

	w := &Wizard{
		steps:      cloneSteps(steps),
		fields:     make(map[string]Field),
		gateway:    gateway,
		hub:        NewHub(),
		uploadTick: defaultUploadTick,
		step:       1,
		draft:      newDraft(),
		uploads:    make(map[string]chan struct{}),
	}
	for _, s := range w.steps {
		for _, f := range s.Fields {
			w.fields[f.Name] = f
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Wizard) Name() string    { return w.name }
func (w *Wizard) TotalSteps() int { return len(w.steps) }
func (w *Wizard) Events() *Hub    { return w.hub }
func (w *Wizard) Steps() []Step   { return cloneSteps(w.steps) }
func (w *Wizard) Field(name string) (Field, bool) {
	f, ok := w.fields[name]
	return f, ok
}

// Step returns the current step index, in [1, TotalSteps].
func (w *Wizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase.status()
}

// Errors returns the error map of the current step.
func (w *Wizard) Errors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.errorsCopy()
}

// Snapshot returns an immutable copy of the draft.
func (w *Wizard) Snapshot() Values {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Snapshot()
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	curr := w.steps[w.step-1]
	draft := w.draft.Snapshot()
	for name, val := range draft {
		if f, ok := w.fields[name]; ok && f.Secret && !IsBlank(val) {
			draft[name] = strings.Repeat("*", 8)
		}
	}
	return State{
		Form:           w.name,
		Step:           w.step,
		TotalSteps:     len(w.steps),
		Title:          curr.Title,
		Fields:         curr.FieldNames(),
		Status:         w.phase.status(),
		Errors:         w.draft.errorsCopy(),
		Draft:          draft,
		UploadProgress: w.draft.progressCopy(),
		Message:        w.failure,
		ReceiptID:      w.receipt.ID,
	}
}

// SetField upserts a draft field and clears its error. It never validates.
func (w *Wizard) SetField(name string, value interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkEditing(); err != nil {
		return err
	}
	if _, ok := w.fields[name]; !ok {
		return errors.Wrap(ErrUnknownField, name)
	}
	w.draft.SetField(name, value)
	return nil
}

// Next validates the current step and, if it has no errors, moves to the next one.
// On the final step it submits the draft instead (see Submit).
// It reports whether the wizard moved; validation failures only fill Errors.
func (w *Wizard) Next(ctx context.Context) (bool, error) {
	w.mu.Lock()
	if err := w.checkEditing(); err != nil {
		w.mu.Unlock()
		return false, err
	}
	if !w.validateLocked() {
		w.mu.Unlock()
		return false, nil
	}
	if w.step < len(w.steps) {
		w.step++
		w.enterStepLocked()
		w.mu.Unlock()
		return true, nil
	}
	w.submitLocked(ctx) // unlocks
	return true, nil
}

// Prev moves back one step without validating. It reports whether the wizard moved.
func (w *Wizard) Prev() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkEditing(); err != nil {
		return false, err
	}
	if w.step == 1 {
		return false, nil
	}
	w.step--
	w.enterStepLocked()
	return true, nil
}

// Submit validates the final step and hands the draft to the gateway.
// It blocks until the gateway answers; the outcome is reflected by Status.
// It reports whether the submission was attempted.
func (w *Wizard) Submit(ctx context.Context) (bool, error) {
	w.mu.Lock()
	if err := w.checkEditing(); err != nil {
		w.mu.Unlock()
		return false, err
	}
	if w.step != len(w.steps) {
		w.mu.Unlock()
		return false, ErrNotFinalStep
	}
	if !w.validateLocked() {
		w.mu.Unlock()
		return false, nil
	}
	w.submitLocked(ctx)
	return true, nil
}

// Retry returns a failed wizard to its final step, with the draft intact.
func (w *Wizard) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWizardClosed
	}
	if w.phase != phaseFailed {
		return ErrNotFailed
	}
	w.phase = phaseEditing
	w.failure = ""
	w.step = len(w.steps)
	w.enterStepLocked()
	return nil
}

// Reset empties the draft and goes back to step 1, as if freshly built.
func (w *Wizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWizardClosed
	}
	if w.phase == phaseSubmitting {
		return ErrNotEditing
	}
	w.stopUploadsLocked()
	w.draft.reset()
	w.phase = phaseEditing
	w.step = 1
	w.failure = ""
	w.receipt = Receipt{}
	w.hub.Publish(Event{Kind: EventReset, Form: w.name, Step: w.step})
	w.enterStepLocked()
	return nil
}

// Close stops pending uploads and releases every event subscription.
// An in-flight submission is abandoned, not cancelled.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.stopUploadsLocked()
	w.hub.Close()
}

func (w *Wizard) checkEditing() error {
	if w.closed {
		return ErrWizardClosed
	}
	if w.phase != phaseEditing {
		return ErrNotEditing
	}
	return nil
}

// validateLocked recomputes the current step's error map and reports whether it is empty.
func (w *Wizard) validateLocked() bool {
	errs := w.steps[w.step-1].Validate(w.draft.values)
	w.draft.setErrors(errs)
	if len(errs) == 0 {
		return true
	}
	w.hub.Publish(Event{Kind: EventValidationFailed, Form: w.name, Step: w.step, Errors: w.draft.errorsCopy()})
	return false
}

func (w *Wizard) enterStepLocked() {
	w.draft.clearErrors()
	w.hub.Publish(Event{Kind: EventStepEntered, Form: w.name, Step: w.step})
}

// submitLocked must be called with w.mu held; it releases it while the gateway works.
func (w *Wizard) submitLocked(ctx context.Context) {
	w.phase = phaseSubmitting
	snapshot := w.draft.Snapshot()
	w.hub.Publish(Event{Kind: EventSubmitting, Form: w.name, Step: w.step})
	w.mu.Unlock()

	receipt, err := w.gateway.Submit(ctx, w.name, snapshot)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.phase = phaseFailed
		w.failure = failureMessage(err)
		w.hub.Publish(Event{Kind: EventSubmissionFailed, Form: w.name, Step: w.step, Message: w.failure})
		return
	}
	w.phase = phaseSubmitted
	w.receipt = receipt
	w.stopUploadsLocked()
	w.draft.reset()
	w.hub.Publish(Event{Kind: EventSubmitted, Form: w.name, Step: w.step, ReceiptID: receipt.ID})
}

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "The submission timed out. Please try again."
	}
	return "We could not send your submission: " + err.Error()
}
