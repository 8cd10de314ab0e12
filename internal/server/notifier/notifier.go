// Package notifier delivers due medication reminders on a fixed interval.
//
// Delivery is at least once: when the email goes out but the status update
// fails, the reminder stays pending and is sent again on a later cycle.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/mailer"
	"github.com/dmitrijs2005/careconnect/internal/server/metrics"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"golang.org/x/time/rate"
)

// Source is the part of the reminder store the poller reads and updates.
type Source interface {
	ListDue(ctx context.Context, before time.Time, limit int) ([]*models.DueReminder, error)
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
}

// MissedMarker moves stale pending reminders to missed.
type MissedMarker interface {
	MarkMissed(ctx context.Context, grace time.Duration) (int64, error)
}

type Options struct {
	Interval    time.Duration
	Lookahead   time.Duration
	MissedGrace time.Duration // zero disables the missed sweep
	RatePerSec  float64
	BatchSize   int
}

// Result is the aggregate outcome of one poll cycle.
type Result struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
}

// Poller runs poll cycles. At most one cycle runs at a time: a cycle
// requested while another is running is skipped, never queued.
type Poller struct {
	source  Source
	missed  MissedMarker
	sender  mailer.Sender
	limiter *rate.Limiter
	metrics *metrics.Notifier
	log     logging.Logger
	opts    Options
	now     func() time.Time

	running atomic.Bool

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

func New(source Source, missed MissedMarker, sender mailer.Sender, m *metrics.Notifier, opts Options, l logging.Logger) *Poller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	burst := max(1, int(opts.RatePerSec))

	return &Poller{
		source:  source,
		missed:  missed,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), burst),
		metrics: m,
		log:     l.With("module", "notifier"),
		opts:    opts,
		now:     time.Now,
	}
}

// RunOnce executes one poll cycle: reminders older than the missed grace
// are marked missed, then every pending reminder due before now+lookahead
// is sent and marked sent. A failing reminder is logged and
// left pending; the cycle carries on with the rest. When another cycle is
// running, RunOnce returns common.ErrCycleInProgress without doing anything.
func (p *Poller) RunOnce(ctx context.Context) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.metrics.SkippedCycles.Inc()
		return Result{}, common.ErrCycleInProgress
	}
	defer p.running.Store(false)

	start := time.Now()
	defer func() { p.metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()
	p.metrics.Cycles.Inc()

	// Reminders past the grace period are marked missed first so they are
	// never emailed late.
	if p.missed != nil && p.opts.MissedGrace > 0 {
		if _, err := p.missed.MarkMissed(ctx, p.opts.MissedGrace); err != nil {
			p.log.Error(ctx, "missed sweep failed", "error", err)
		}
	}

	due, err := p.source.ListDue(ctx, p.now().Add(p.opts.Lookahead), p.opts.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("list due reminders: %w", err)
	}

	var res Result
	for _, r := range due {
		res.Processed++
		if err := p.deliver(ctx, r); err != nil {
			p.metrics.Failed.Inc()
			p.log.Warn(ctx, "reminder not delivered", "reminder_id", r.ID, "error", err)
			continue
		}
		p.metrics.Sent.Inc()
		res.Sent++
	}

	return res, nil
}

func (p *Poller) deliver(ctx context.Context, r *models.DueReminder) error {
	if r.Email == "" {
		return fmt.Errorf("%w: reminder has no recipient", common.ErrValidation)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	subject, body := Compose(r)
	if err := p.sender.Send(ctx, r.Email, subject, body); err != nil {
		return err
	}

	updated, err := p.source.MarkSent(ctx, r.ID, p.now())
	if err != nil {
		p.log.Warn(ctx, "reminder sent but not marked; it will be sent again", "reminder_id", r.ID, "error", err)
		return nil
	}
	if !updated {
		p.log.Debug(ctx, "reminder left pending state during delivery", "reminder_id", r.ID)
	}
	return nil
}

// Compose renders the notification. The due time is shown in the schedule's
// timezone.
func Compose(r *models.DueReminder) (subject, body string) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		loc = time.UTC
	}

	subject = "Medication reminder: " + r.MedicationName
	body = fmt.Sprintf("It is time to take %s.\n", r.MedicationName)
	if r.Dosage != "" {
		body += fmt.Sprintf("Dosage: %s\n", r.Dosage)
	}
	body += fmt.Sprintf("Due at: %s\n", r.DueAt.In(loc).Format("Mon, 02 Jan 2006 15:04 MST"))
	return subject, body
}

// Start runs a cycle on every tick until ctx is cancelled or Stop is
// called. Each tick runs in its own goroutine so a slow cycle never delays
// the ticker; overlapping ticks are skipped by RunOnce.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	p.done = make(chan struct{})
	done := p.done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(ctx, done)
	}()
	p.log.Info(ctx, "notifier started", "interval", p.opts.Interval.String(), "lookahead", p.opts.Lookahead.String())
}

func (p *Poller) loop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.tick(ctx)
			}()
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	res, err := p.RunOnce(ctx)
	switch {
	case errors.Is(err, common.ErrCycleInProgress):
		p.log.Debug(ctx, "poll cycle skipped, previous still running")
	case err != nil:
		p.log.Error(ctx, "poll cycle failed", "error", err)
	case res.Processed > 0:
		p.log.Info(ctx, "poll cycle done", "processed", res.Processed, "sent", res.Sent)
	}
}

// Stop ends the loop and waits for running cycles to finish. It is safe to
// call more than once, and Start may be called again afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	done := p.done
	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()

	p.mu.Lock()
	if p.done == done {
		p.done = nil
	}
	p.mu.Unlock()
}
