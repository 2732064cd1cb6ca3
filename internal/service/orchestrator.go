package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/collector"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/metrics"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/store"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the
	// current stage. The session is left untouched.
	ErrInvalidTransition = errors.New("invalid checkout transition")

	// ErrUnknownMethod is returned by SelectMethod for methods outside the offered set.
	ErrUnknownMethod = errors.New("unknown payment method")
)

const (
	timerProcessing = "processing"
	timerSuccess    = "success_display"
	timerCloseReset = "close_reset"

	guardTimeout   = 2 * time.Second
	publishTimeout = time.Second
)

// Timings are the durations of the simulated provider and of the reset delays.
type Timings struct {
	ProcessingDuration time.Duration
	MessageInterval    time.Duration
	SuccessDisplay     time.Duration
	CloseResetDelay    time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ProcessingDuration: 4 * time.Second,
		MessageInterval:    time.Second,
		SuccessDisplay:     2 * time.Second,
		CloseResetDelay:    300 * time.Millisecond,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.ProcessingDuration <= 0 {
		t.ProcessingDuration = d.ProcessingDuration
	}
	if t.MessageInterval <= 0 {
		t.MessageInterval = d.MessageInterval
	}
	if t.SuccessDisplay <= 0 {
		t.SuccessDisplay = d.SuccessDisplay
	}
	if t.CloseResetDelay <= 0 {
		t.CloseResetDelay = d.CloseResetDelay
	}
	return t
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func WithTimings(t Timings) Option { return func(o *Orchestrator) { o.timings = t } }

func WithSuccessGuard(g interfaces.SuccessGuard) Option { return func(o *Orchestrator) { o.guard = g } }

func WithPublisher(p interfaces.StageEventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithMetrics(m *metrics.CheckoutMetrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// Orchestrator drives one checkout session at a time through
// Selection -> Collecting -> Processing -> Success and back to Selection.
// It is reused across sessions.
//
// Every timer is armed under the current generation; any operation that
// invalidates pending timers bumps the generation, so a late callback sees a
// mismatch and does nothing.
type Orchestrator struct {
	host      interfaces.CheckoutHost
	clock     clock.Clock
	timings   Timings
	guard     interfaces.SuccessGuard
	publisher interfaces.StageEventPublisher
	metrics   *metrics.CheckoutMetrics
	logger    *zap.Logger

	mu           sync.Mutex
	sessionID    string
	plan         *models.PlanDescriptor
	open         bool
	stage        models.Stage
	method       models.Method
	messageIndex int
	elapsed      time.Duration
	collector    collector.Collector
	notified     bool

	generation uint64
	timer      *clock.Timer
}

func NewOrchestrator(host interfaces.CheckoutHost, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		host:    host,
		clock:   clock.New(),
		timings: DefaultTimings(),
		logger:  zap.NewNop(),
		stage:   models.StageSelection,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.timings = o.timings.withDefaults()
	if o.guard == nil {
		o.guard = store.NewNotificationGuard(store.NewMemoryKV(o.clock), time.Hour)
	}
	return o
}

// Open starts a new session for plan and returns its id.
func (o *Orchestrator) Open(plan models.PlanDescriptor) string {
	id := uuid.NewString()
	o.OpenSession(id, plan)
	return id
}

// OpenSession starts the session sessionID. Whatever the previous session was
// doing is abandoned and the new one always starts at Selection.
func (o *Orchestrator) OpenSession(sessionID string, plan models.PlanDescriptor) {
	o.mu.Lock()
	prev := o.stage
	o.cancelTimerLocked()
	o.clearSessionLocked()
	o.sessionID = sessionID
	o.plan = &plan
	o.open = true
	evt := o.setStageLocked(models.StageSelection)
	o.mu.Unlock()

	o.metrics.SessionOpened()
	o.logger.Info("Checkout opened",
		zap.String("session_id", sessionID),
		zap.String("plan", plan.Name),
		zap.String("previous_stage", string(prev)),
	)
	if prev != models.StageSelection {
		o.publish(evt)
	}
}

// SelectMethod moves from Selection to the method's collecting stage with a
// fresh collector.
func (o *Orchestrator) SelectMethod(m models.Method) error {
	if !m.Valid() {
		return ErrUnknownMethod
	}

	o.mu.Lock()
	to := m.CollectingStage()
	if !o.open || !models.CanTransition(o.stage, to) {
		o.rejectLocked("select_method")
		o.mu.Unlock()
		return ErrInvalidTransition
	}

	o.cancelTimerLocked()
	gen := o.generation
	c, err := collector.New(m, func() { o.submitFrom(gen) })
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.collector = c
	o.method = m
	evt := o.setStageLocked(to)
	o.mu.Unlock()

	o.publish(evt)
	return nil
}

// Submit starts the simulated provider confirmation. Collectors call this
// through their submit signal once their fields are filled in.
func (o *Orchestrator) Submit() error {
	o.mu.Lock()
	evt, err := o.submitLocked()
	o.mu.Unlock()

	if err != nil {
		return err
	}
	o.publish(evt)
	return nil
}

func (o *Orchestrator) submitFrom(gen uint64) {
	o.mu.Lock()
	if gen != o.generation {
		o.logger.Debug("Ignoring submit from discarded collector", zap.String("session_id", o.sessionID))
		o.mu.Unlock()
		return
	}
	evt, err := o.submitLocked()
	o.mu.Unlock()

	if err == nil {
		o.publish(evt)
	}
}

func (o *Orchestrator) submitLocked() (models.StageChangedEvent, error) {
	if !o.open || !models.CanTransition(o.stage, models.StageProcessing) {
		o.rejectLocked("submit")
		return models.StageChangedEvent{}, ErrInvalidTransition
	}

	o.cancelTimerLocked()
	o.discardCollectorLocked()
	o.messageIndex = 0
	o.elapsed = 0
	evt := o.setStageLocked(models.StageProcessing)
	o.armProcessingLocked()
	return evt, nil
}

// GoBack returns from a collecting stage to Selection, discarding the input.
func (o *Orchestrator) GoBack() error {
	o.mu.Lock()
	// Success also leads to Selection, but only through the display timer.
	if !o.open || !o.stage.Collecting() || !models.CanTransition(o.stage, models.StageSelection) {
		o.rejectLocked("go_back")
		o.mu.Unlock()
		return ErrInvalidTransition
	}

	o.cancelTimerLocked()
	o.discardCollectorLocked()
	o.method = ""
	evt := o.setStageLocked(models.StageSelection)
	o.mu.Unlock()

	o.publish(evt)
	return nil
}

// Close abandons the session. The host is not notified; the stage is reset
// to Selection after CloseResetDelay.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.open {
		return
	}
	if o.stage == models.StageSuccess {
		o.metrics.SessionCompleted()
	} else {
		o.metrics.SessionAbandoned()
	}
	o.open = false
	o.cancelTimerLocked()
	o.discardCollectorLocked()

	gen := o.generation
	o.timer = o.clock.AfterFunc(o.timings.CloseResetDelay, func() { o.onCloseReset(gen) })
	o.logger.Info("Checkout closed",
		zap.String("session_id", o.sessionID),
		zap.String("stage", string(o.stage)),
	)
}

// Teardown stops every pending timer and leaves the orchestrator closed at
// Selection.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelTimerLocked()
	o.setStageLocked(models.StageSelection)
	o.clearSessionLocked()
}

func (o *Orchestrator) armProcessingLocked() {
	step := o.timings.MessageInterval
	if remaining := o.timings.ProcessingDuration - o.elapsed; remaining < step {
		step = remaining
	}
	gen := o.generation
	o.timer = o.clock.AfterFunc(step, func() { o.onProcessingStep(gen, step) })
}

func (o *Orchestrator) onProcessingStep(gen uint64, step time.Duration) {
	o.mu.Lock()
	if !o.currentLocked(gen, models.StageProcessing, timerProcessing) {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.elapsed += step
	if step == o.timings.MessageInterval {
		o.messageIndex = (o.messageIndex + 1) % len(models.StatusMessages)
	}

	if o.elapsed < o.timings.ProcessingDuration {
		o.armProcessingLocked()
		o.mu.Unlock()
		return
	}

	evt := o.setStageLocked(models.StageSuccess)
	sessionID := o.sessionID
	var plan models.PlanDescriptor
	if o.plan != nil {
		plan = *o.plan
	}
	notify := !o.notified
	o.notified = true
	successGen := o.generation
	o.timer = o.clock.AfterFunc(o.timings.SuccessDisplay, func() { o.onSuccessDisplayed(successGen) })
	o.mu.Unlock()

	o.publish(evt)
	if notify {
		o.notifySuccess(sessionID, plan)
	}
}

// notifySuccess reports the session captured on entry to Success, whatever
// the orchestrator has moved on to since.
func (o *Orchestrator) notifySuccess(sessionID string, plan models.PlanDescriptor) {
	ctx, cancel := context.WithTimeout(context.Background(), guardTimeout)
	defer cancel()

	claimed, err := o.guard.Claim(ctx, sessionID)
	if err != nil {
		// The per-instance flag already kept this to one call here.
		o.logger.Warn("Success guard unavailable, notifying anyway",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		claimed = true
	}
	if !claimed {
		o.metrics.DuplicateSuccess()
		o.logger.Info("Success already notified", zap.String("session_id", sessionID))
		return
	}

	o.logger.Info("Checkout succeeded", zap.String("session_id", sessionID))
	switch h := o.host.(type) {
	case nil:
	case interfaces.SessionSuccessHost:
		h.OnSessionSuccess(sessionID, plan)
	default:
		h.OnUpgradeSuccess()
	}
}

func (o *Orchestrator) onSuccessDisplayed(gen uint64) {
	o.mu.Lock()
	if !o.currentLocked(gen, models.StageSuccess, timerSuccess) {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	sessionID := o.sessionID
	evt := o.setStageLocked(models.StageSelection)
	o.clearSessionLocked()
	o.mu.Unlock()

	o.metrics.SessionCompleted()
	o.logger.Info("Checkout completed", zap.String("session_id", sessionID))
	o.publish(evt)
}

func (o *Orchestrator) onCloseReset(gen uint64) {
	o.mu.Lock()
	if gen != o.generation {
		o.suppressedLocked(timerCloseReset)
		o.mu.Unlock()
		return
	}
	o.timer = nil
	prev := o.stage
	evt := o.setStageLocked(models.StageSelection)
	o.clearSessionLocked()
	o.mu.Unlock()

	if prev != models.StageSelection {
		o.publish(evt)
	}
}

func (o *Orchestrator) currentLocked(gen uint64, stage models.Stage, timer string) bool {
	if gen != o.generation || o.stage != stage {
		o.suppressedLocked(timer)
		return false
	}
	return true
}

func (o *Orchestrator) suppressedLocked(timer string) {
	o.metrics.TimerSuppressed(timer)
	o.logger.Debug("Suppressed stale timer",
		zap.String("timer", timer),
		zap.String("session_id", o.sessionID),
	)
}

func (o *Orchestrator) rejectLocked(op string) {
	o.metrics.TransitionRejected(op, o.stage)
	o.logger.Debug("Ignoring operation in current stage",
		zap.String("operation", op),
		zap.String("stage", string(o.stage)),
		zap.Bool("open", o.open),
		zap.String("session_id", o.sessionID),
	)
}

// cancelTimerLocked invalidates every pending callback.
func (o *Orchestrator) cancelTimerLocked() {
	o.generation++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) discardCollectorLocked() {
	if o.collector != nil {
		o.collector.Reset()
		o.collector = nil
	}
}

func (o *Orchestrator) clearSessionLocked() {
	o.discardCollectorLocked()
	o.sessionID = ""
	o.plan = nil
	o.open = false
	o.method = ""
	o.messageIndex = 0
	o.elapsed = 0
	o.notified = false
}

func (o *Orchestrator) setStageLocked(to models.Stage) models.StageChangedEvent {
	from := o.stage
	o.stage = to
	if !to.Collecting() {
		o.method = ""
	}
	if from != to {
		o.metrics.ObserveTransition(from, to)
		o.logger.Info("Checkout stage transition",
			zap.String("session_id", o.sessionID),
			zap.String("from_stage", string(from)),
			zap.String("to_stage", string(to)),
		)
	}

	evt := models.StageChangedEvent{
		SessionID:     o.sessionID,
		Stage:         to,
		PreviousStage: from,
		Method:        o.method,
		Timestamp:     o.clock.Now(),
	}
	if o.plan != nil {
		evt.Plan = o.plan.Name
	}
	return evt
}

func (o *Orchestrator) publish(evt models.StageChangedEvent) {
	if o.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := o.publisher.PublishStageChanged(ctx, evt); err != nil {
		o.logger.Warn("Failed to publish stage change",
			zap.String("session_id", evt.SessionID),
			zap.String("stage", string(evt.Stage)),
			zap.Error(err),
		)
	}
}

// Stage returns the current stage.
func (o *Orchestrator) Stage() models.Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// SelectedMethod returns the method being collected, if any.
func (o *Orchestrator) SelectedMethod() (models.Method, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.method, o.method != ""
}

func (o *Orchestrator) StatusMessageIndex() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.messageIndex
}

func (o *Orchestrator) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// CanGoBack reports whether the "go back" affordance should be shown.
func (o *Orchestrator) CanGoBack() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open && o.stage.Collecting()
}

// Collector returns the input collector of the current collecting stage.
func (o *Orchestrator) Collector() (collector.Collector, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.collector, o.collector != nil
}

func (o *Orchestrator) Snapshot() models.CheckoutSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := models.CheckoutSnapshot{
		SessionID: o.sessionID,
		Open:      o.open,
		Stage:     o.stage,
		Method:    o.method,
		CanGoBack: o.open && o.stage.Collecting(),
	}
	if o.stage == models.StageProcessing {
		snap.StatusMessage = models.StatusMessages[o.messageIndex]
	}
	if o.plan != nil {
		plan := *o.plan
		snap.Plan = &plan
	}
	return snap
}
