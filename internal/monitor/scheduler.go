package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/gate"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/intervention"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/observe"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/prompt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

const (
	// defaultTickInterval is the monitoring period.
	defaultTickInterval = 15 * time.Second

	// defaultHeartbeat is the maximum age of the published agenda snapshot.
	defaultHeartbeat = 60 * time.Second
)

// TangentAssessor classifies conversational drift for the tangent leg of a
// monitoring pass.
type TangentAssessor interface {
	Assess(ctx context.Context, st agenda.TimeStatus, style agenda.Style, recent []types.TranscriptEntry) Assessment
}

var _ TangentAssessor = (*Assessor)(nil)

// Scheduler polls the agenda state machine on a fixed interval and raises
// intervention candidates: the time warning when an item crosses its
// threshold, the transition when it runs out, the tangent redirect when the
// assessor flags a drift, and the wrap-up when the agenda is exhausted. It
// also keeps the room's agenda UI fresh, publishing a snapshot after every
// transition and on a heartbeat otherwise.
//
// The ticker goroutine never touches meeting state directly: each pass is
// posted onto the session control task, so the scheduler's bookkeeping needs
// no lock. The one model call a pass may make, the tangent assessment, runs
// on its own goroutine and posts its continuation back to the control task;
// at most one assessment is in flight at a time.
type Scheduler struct {
	machine     *agenda.Machine
	coordinator *intervention.Coordinator
	assessor    TangentAssessor
	post        func(func())
	summarise   func(agenda.Item)
	publishSnap func(agenda.Snapshot)
	onWrapUp    func()
	interval    time.Duration
	heartbeat   time.Duration
	clock       agenda.Clock
	metrics     *observe.Metrics

	done     chan struct{}
	stopOnce sync.Once

	// Control-task state. Touched only by CheckNow and the assessment
	// continuation, both of which run on the session control task.
	assessing   bool
	finished    bool
	lastPublish time.Time
}

// SchedulerConfig configures a [Scheduler].
type SchedulerConfig struct {
	// Machine is the agenda state machine being monitored.
	Machine *agenda.Machine

	// Coordinator receives every intervention candidate a pass raises.
	Coordinator *intervention.Coordinator

	// Assessor classifies conversational drift. Nil disables tangent checks.
	Assessor TangentAssessor

	// Post schedules a function onto the session control task.
	Post func(func())

	// Summarise is handed each item a pass finishes, before the wrap-up on
	// the final one. The session runs note extraction on it.
	Summarise func(agenda.Item)

	// PublishSnapshot pushes the agenda UI state to the room.
	PublishSnapshot func(agenda.Snapshot)

	// OnWrapUp runs once, after the wrap-up candidate was submitted and the
	// final snapshot published. The session hooks document assembly here.
	OnWrapUp func()

	// Interval is the monitoring period. Defaults to 15 seconds if zero.
	Interval time.Duration

	// Heartbeat is the maximum age of the published snapshot. Defaults to 60
	// seconds if zero.
	Heartbeat time.Duration

	// Clock supplies time for the heartbeat bookkeeping. Defaults to the
	// system clock.
	Clock agenda.Clock

	// Metrics, when non-nil, records the duration of each monitoring pass.
	Metrics *observe.Metrics
}

// NewScheduler creates a new [Scheduler] with the given configuration.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	clock := cfg.Clock
	if clock == nil {
		clock = agenda.SystemClock{}
	}
	return &Scheduler{
		machine:     cfg.Machine,
		coordinator: cfg.Coordinator,
		assessor:    cfg.Assessor,
		post:        cfg.Post,
		summarise:   cfg.Summarise,
		publishSnap: cfg.PublishSnapshot,
		onWrapUp:    cfg.OnWrapUp,
		interval:    interval,
		heartbeat:   heartbeat,
		clock:       clock,
		metrics:     cfg.Metrics,
		done:        make(chan struct{}),
		lastPublish: clock.Now(),
	}
}

// Start begins the monitoring loop in a background goroutine. The goroutine
// runs until [Scheduler.Stop] is called, the agenda wraps up, or ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop halts the monitoring loop. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.post(func() { s.CheckNow(ctx) })
		}
	}
}

// CheckNow runs one monitoring pass. It must run on the session control
// task: the ticker loop posts it there, and the session may post an extra
// pass of its own, after a style change for instance.
func (s *Scheduler) CheckNow(ctx context.Context) {
	if s.metrics != nil {
		// Wall time, not the injectable clock: the histogram measures how long
		// a pass actually takes.
		start := time.Now()
		defer func() { s.metrics.TickDuration.Record(ctx, time.Since(start).Seconds()) }()
	}
	if s.finished || !s.machine.Started() || s.machine.EndTriggered() {
		return
	}

	if s.machine.Style() == agenda.StyleChatting {
		// Facilitation is paused; keep the room UI fresh and nothing else.
		s.maybeHeartbeat()
		return
	}

	if s.machine.CurrentItem() == nil {
		s.wrapUp(ctx)
		return
	}

	transitioned := false
	switch s.machine.CheckTime() {
	case agenda.SignalWarningEntered:
		if s.machine.CanIntervene() {
			s.coordinator.Submit(ctx, intervention.Candidate{
				Trigger: gate.TriggerTimeWarning,
				Text:    prompt.TimeWarning(s.machine.TimeStatus()),
			})
		}
	case agenda.SignalOvertime:
		transitioned = s.advance(ctx)
		if s.finished {
			return
		}
	}

	if !transitioned {
		s.maybeAssess(ctx)
		s.maybeHeartbeat()
		return
	}
	s.publish()
}

// advance moves the agenda forward: it finalises the current item, announces
// the next one or wraps up when there is none, and hands the finished item to
// the summarisation hook either way.
func (s *Scheduler) advance(ctx context.Context) bool {
	cur := s.machine.CurrentItem()
	next, err := s.machine.Advance()
	if err != nil {
		slog.Error("monitor: advance failed", "err", err)
		return false
	}
	// cur points into the machine's item table, so after Advance it carries
	// the finalised state and elapsed time.
	finished := *cur

	if next != nil {
		s.coordinator.Submit(ctx, intervention.Candidate{
			Trigger: gate.TriggerTransition,
			Text:    prompt.Transition(finished.Topic, *next),
		})
	}
	if s.summarise != nil {
		s.summarise(finished)
	}
	if next == nil {
		s.wrapUp(ctx)
	}
	return true
}

// wrapUp closes the meeting: the wrap-up candidate, the final snapshot, and
// the document assembly hook. The loop stops ticking afterwards.
func (s *Scheduler) wrapUp(ctx context.Context) {
	s.coordinator.Submit(ctx, intervention.Candidate{
		Trigger: gate.TriggerWrapUp,
		Text:    prompt.WrapUp(s.machine.MeetingOvertime()),
	})
	s.publish()
	s.finished = true
	s.Stop()
	if s.onWrapUp != nil {
		s.onWrapUp()
	}
}

// maybeAssess launches a tangent assessment unless one is already in flight
// or the machine's spacing rules say a redirect could not be spoken anyway.
func (s *Scheduler) maybeAssess(ctx context.Context) {
	if s.assessing || s.assessor == nil {
		return
	}
	recent := s.machine.RecentTranscript(s.machine.Tuning().RecentWindow)
	if len(recent) == 0 {
		return
	}
	if !s.machine.CanInterveneForTangent() || !s.machine.CanIntervene() {
		return
	}

	st := s.machine.TimeStatus()
	style := s.machine.Style()
	s.assessing = true
	go func() {
		a := s.assessor.Assess(ctx, st, style, recent)
		s.post(func() { s.applyAssessment(ctx, a) })
	}()
}

// applyAssessment is the assessment continuation, back on the control task.
func (s *Scheduler) applyAssessment(ctx context.Context, a Assessment) {
	s.assessing = false
	if s.finished || a.Redirect == "" {
		return
	}
	// The meeting may have moved on while the model was thinking.
	if !s.machine.CanInterveneForTangent() || !s.machine.CanIntervene() {
		return
	}
	s.coordinator.Submit(ctx, intervention.Candidate{
		Trigger:    gate.TriggerTangent,
		Text:       a.Redirect,
		Confidence: a.Confidence,
	})
}

func (s *Scheduler) publish() {
	if s.publishSnap != nil {
		s.publishSnap(s.machine.Snapshot())
	}
	s.lastPublish = s.clock.Now()
}

func (s *Scheduler) maybeHeartbeat() {
	if s.clock.Now().Sub(s.lastPublish) >= s.heartbeat {
		s.publish()
	}
}
