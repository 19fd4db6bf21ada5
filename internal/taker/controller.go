// Package taker drives the candidate side of a timed assessment session:
// a phase machine over fetch/start/answer/complete with a wall-clock
// countdown. It is transport-agnostic; the Client interface hides how
// calls reach the service.
package taker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/services"
)

// Phase is the taker-visible state of the session flow.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseWelcome    Phase = "welcome"
	PhaseAgreement  Phase = "agreement"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
	PhaseTimedOut   Phase = "timed_out"
	PhaseExpired    Phase = "expired"
	PhaseError      Phase = "error"
)

// Client is the remote surface the controller talks to. All operations
// are idempotent on the server side; answers are last-write-wins.
type Client interface {
	FetchSession(ctx context.Context, token string) (*services.SessionView, error)
	StartSession(ctx context.Context, token string) (*services.SessionView, error)
	AcceptAgreement(ctx context.Context, token string) (*services.SessionView, error)
	SubmitAnswer(ctx context.Context, token string, questionID uint, score int) error
	CompleteSession(ctx context.Context, token string) (*services.SessionView, error)
}

// Snapshot is an immutable view of controller state pushed to Updates.
type Snapshot struct {
	Phase         Phase
	TimeRemaining *int
	Questions     []services.QuestionResponse
	Answers       map[uint]int
	Err           error
}

// pendingSubmit is the per-question submission slot: at most one request
// in flight, at most one value queued behind it. A newer answer replaces
// the queued one, so the last local value is always the last sent.
type pendingSubmit struct {
	inFlight bool
	queued   *int
}

type Controller struct {
	client Client
	token  string
	logger *slog.Logger

	now          func() time.Time
	tickInterval time.Duration

	mu        sync.Mutex
	phase     Phase
	scaleType int
	questions []services.QuestionResponse
	answers   map[uint]int
	startedAt *time.Time
	timeLimit *int
	consent   bool // agreement step still owed after start
	lastErr   error

	pending map[uint]*pendingSubmit

	tickerStop chan struct{}
	updates    chan Snapshot
	closed     bool
}

type Option func(*Controller)

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTickInterval overrides the countdown refresh cadence.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickInterval = d }
}

func NewController(client Client, token string, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		client:       client,
		token:        token,
		logger:       logger,
		now:          time.Now,
		tickInterval: time.Second,
		phase:        PhaseLoading,
		answers:      make(map[uint]int),
		pending:      make(map[uint]*pendingSubmit),
		updates:      make(chan Snapshot, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Updates streams state snapshots. The channel closes on Close.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Load fetches the session and settles the initial phase. Terminal
// sessions land directly in their terminal phase; a running session
// resumes against the original deadline and times out immediately when
// that deadline already passed.
func (c *Controller) Load(ctx context.Context) error {
	view, err := c.client.FetchSession(ctx, c.token)
	if err != nil {
		c.mu.Lock()
		switch {
		case errors.Is(err, services.ErrSessionExpired):
			c.phase = PhaseExpired
		case errors.Is(err, services.ErrSessionNotFound):
			c.phase = PhaseError
			c.lastErr = err
		default:
			c.phase = PhaseError
			c.lastErr = err
		}
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.mu.Lock()
	c.applyView(view)

	switch view.Status {
	case models.SessionCompleted:
		c.phase = terminalPhase(view.EndReason)
	case models.SessionExpired:
		c.phase = PhaseExpired
	case models.SessionInProgress:
		if remaining, limited := c.remainingLocked(); limited && remaining <= 0 {
			// Resume grants no extra time: the deadline passed while the
			// candidate was away, so the session ends now.
			c.timeoutLocked(ctx)
		} else {
			c.phase = PhaseInProgress
			c.startTickerLocked(ctx)
		}
	default:
		// A pending session always opens on the welcome screen; any
		// consent step comes after the taker confirms start.
		c.phase = PhaseWelcome
		c.consent = view.RequiresConsent && !view.ConsentAccepted
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// Start begins (or resumes) the test when the taker confirms on the
// welcome screen. The clock starts here; any consent step follows with
// the countdown already running. The remote start is idempotent, so a
// failed call does not block the candidate: the controller proceeds with
// its local state and the next interaction retries implicitly.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseInProgress:
		c.mu.Unlock()
		return nil
	case PhaseWelcome:
	default:
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	c.mu.Unlock()

	view, err := c.client.StartSession(ctx, c.token)

	c.mu.Lock()
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionExpired):
			c.phase = PhaseExpired
			c.mu.Unlock()
			c.notify()
			return err
		case errors.Is(err, services.ErrSessionAlreadyCompleted):
			c.phase = PhaseCompleted
			c.mu.Unlock()
			c.notify()
			return err
		}
		// Transient failure: start locally, the server call was idempotent
		// and will reconcile on the next request.
		c.logger.Warn("remote start failed, proceeding locally", "error", err)
		if c.startedAt == nil {
			now := c.now()
			c.startedAt = &now
		}
	} else {
		c.applyView(view)
	}

	if c.consent {
		c.phase = PhaseAgreement
	} else {
		c.phase = PhaseInProgress
	}
	c.startTickerLocked(ctx)
	c.mu.Unlock()
	c.notify()
	return nil
}

// AcceptAgreement records consent and enters the test proper. The
// session is already started, so a deadline that slipped past during the
// consent screen times out here.
func (c *Controller) AcceptAgreement(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseAgreement {
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	c.mu.Unlock()

	view, err := c.client.AcceptAgreement(ctx, c.token)
	if err != nil {
		// Same posture as the start call: the server reconciles, the
		// candidate is not stranded on the consent screen.
		c.logger.Warn("remote agreement failed, proceeding locally", "error", err)
	}

	c.mu.Lock()
	if view != nil {
		c.applyView(view)
	}
	c.consent = false
	if remaining, limited := c.remainingLocked(); limited && remaining <= 0 {
		c.timeoutLocked(ctx)
	} else {
		c.phase = PhaseInProgress
		c.startTickerLocked(ctx)
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// Answer validates and records a response locally, then pushes it to the
// server in the background. Validation failures never reach the wire.
func (c *Controller) Answer(ctx context.Context, questionID uint, score int) error {
	c.mu.Lock()
	if c.phase != PhaseInProgress {
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	if score < 1 || score > c.scaleType {
		c.mu.Unlock()
		return ErrScoreOutOfRange
	}
	if !c.hasQuestionLocked(questionID) {
		c.mu.Unlock()
		return ErrUnknownQuestion
	}

	c.answers[questionID] = score
	c.enqueueSubmitLocked(ctx, questionID, score)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Complete finishes the test manually. Every question must be answered;
// the timeout path has no such requirement.
func (c *Controller) Complete(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseCompleted || c.phase == PhaseTimedOut {
		c.mu.Unlock()
		return nil
	}
	if c.phase != PhaseInProgress {
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	if len(c.answers) < len(c.questions) {
		c.mu.Unlock()
		return ErrUnansweredQuestions
	}

	c.phase = PhaseCompleted
	c.stopTickerLocked()
	c.mu.Unlock()

	if _, err := c.client.CompleteSession(ctx, c.token); err != nil {
		// The server will settle the session on its own; the candidate
		// still sees the finished screen.
		c.logger.Error("remote completion failed", "error", err)
	}

	c.notify()
	return nil
}

// TimeRemaining recomputes the countdown from the start timestamp; the
// ticker only triggers refreshes, it never owns the value.
func (c *Controller) TimeRemaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close stops the ticker and closes the update stream.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTickerLocked()
	c.mu.Unlock()
	close(c.updates)
}

// ===== INTERNALS =====

func (c *Controller) applyView(view *services.SessionView) {
	c.scaleType = view.ScaleType
	if len(view.Questions) > 0 {
		c.questions = view.Questions
	}
	for questionID, score := range view.Answers {
		if _, ok := c.answers[questionID]; !ok {
			c.answers[questionID] = score
		}
	}
	c.startedAt = view.StartedAt
	c.timeLimit = view.TimeLimit
}

func (c *Controller) hasQuestionLocked(questionID uint) bool {
	for _, q := range c.questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func (c *Controller) remainingLocked() (int, bool) {
	if c.startedAt == nil || c.timeLimit == nil {
		return 0, false
	}
	deadline := c.startedAt.Add(time.Duration(*c.timeLimit) * time.Second)
	remaining := int(deadline.Sub(c.now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// enqueueSubmitLocked implements the depth-1 per-question queue: while a
// submit is in flight, only the newest pending value survives.
func (c *Controller) enqueueSubmitLocked(ctx context.Context, questionID uint, score int) {
	slot, ok := c.pending[questionID]
	if !ok {
		slot = &pendingSubmit{}
		c.pending[questionID] = slot
	}
	if slot.inFlight {
		s := score
		slot.queued = &s
		return
	}
	slot.inFlight = true
	go c.submitLoop(ctx, questionID, score)
}

func (c *Controller) submitLoop(ctx context.Context, questionID uint, score int) {
	for {
		if err := c.client.SubmitAnswer(ctx, c.token, questionID, score); err != nil {
			// Fire-and-forget: the local answer stands, the server copy
			// catches up on the next submit or at completion.
			c.logger.Warn("answer submit failed",
				"question_id", questionID,
				"error", err)
		}

		c.mu.Lock()
		slot := c.pending[questionID]
		if slot == nil || slot.queued == nil {
			if slot != nil {
				slot.inFlight = false
			}
			c.mu.Unlock()
			return
		}
		score = *slot.queued
		slot.queued = nil
		c.mu.Unlock()
	}
}

func (c *Controller) startTickerLocked(ctx context.Context) {
	if c.tickerStop != nil {
		return
	}
	_, limited := c.remainingLocked()
	if !limited {
		return
	}
	stop := make(chan struct{})
	c.tickerStop = stop
	go c.runTicker(ctx, stop)
}

func (c *Controller) stopTickerLocked() {
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

func (c *Controller) runTicker(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.tick(ctx) {
				return
			}
		}
	}
}

// tick refreshes the countdown and fires the timeout transition when the
// deadline passed. Returns true when the ticker should stop.
func (c *Controller) tick(ctx context.Context) bool {
	c.mu.Lock()
	// The clock also runs while the consent screen is up.
	if c.phase != PhaseInProgress && c.phase != PhaseAgreement {
		c.mu.Unlock()
		return true
	}
	remaining, limited := c.remainingLocked()
	if limited && remaining <= 0 {
		c.timeoutLocked(ctx)
		c.mu.Unlock()
		c.notify()
		return true
	}
	c.mu.Unlock()
	c.notify()
	return false
}

// timeoutLocked performs the exclusive timeout transition. The phase
// check at every caller plus the lock guarantee it runs at most once.
func (c *Controller) timeoutLocked(ctx context.Context) {
	if c.phase == PhaseTimedOut || c.phase == PhaseCompleted {
		return
	}
	c.phase = PhaseTimedOut
	c.stopTickerLocked()

	go func() {
		if _, err := c.client.CompleteSession(ctx, c.token); err != nil {
			c.logger.Error("timeout completion failed", "error", err)
		}
	}()
}

func (c *Controller) notify() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snapshot := Snapshot{
		Phase:     c.phase,
		Questions: c.questions,
		Answers:   make(map[uint]int, len(c.answers)),
		Err:       c.lastErr,
	}
	for questionID, score := range c.answers {
		snapshot.Answers[questionID] = score
	}
	if remaining, limited := c.remainingLocked(); limited &&
		(c.phase == PhaseInProgress || c.phase == PhaseAgreement) {
		snapshot.TimeRemaining = &remaining
	}
	c.mu.Unlock()

	select {
	case c.updates <- snapshot:
	default:
		// Slow consumer: drop the snapshot, a fresher one follows.
	}
}

func terminalPhase(endReason *string) Phase {
	if endReason != nil && *endReason == models.SessionEndReasonTimeout {
		return PhaseTimedOut
	}
	return PhaseCompleted
}
