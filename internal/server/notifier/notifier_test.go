package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/metrics"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu      sync.Mutex
	due     []*models.DueReminder
	listErr error
	markErr error
	before  time.Time
	limit   int
	marked  []string
}

func (f *fakeSource) ListDue(_ context.Context, before time.Time, limit int) ([]*models.DueReminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before, f.limit = before, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.DueReminder
	for _, r := range f.due {
		if r.Status == models.StatusPending && !r.DueAt.After(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) MarkSent(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	for _, r := range f.due {
		if r.ID == id && r.Status == models.StatusPending {
			r.Status = models.StatusSent
			r.SentAt = &at
			f.marked = append(f.marked, id)
			return true, nil
		}
	}
	return false, nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSender) Send(_ context.Context, to, subject, _ string) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

type fakeMissed struct {
	mu    sync.Mutex
	calls int
	grace time.Duration
	src   *fakeSource
}

// MarkMissed flips pending reminders of src older than now-grace.
func (f *fakeMissed) MarkMissed(_ context.Context, grace time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.grace = grace
	if f.src == nil {
		return 0, nil
	}
	f.src.mu.Lock()
	defer f.src.mu.Unlock()
	var n int64
	for _, r := range f.src.due {
		if r.Status == models.StatusPending && r.DueAt.Before(now.Add(-grace)) {
			r.Status = models.StatusMissed
			n++
		}
	}
	return n, nil
}

func due(id, email string, at time.Time) *models.DueReminder {
	return &models.DueReminder{
		Reminder:       models.Reminder{ID: id, DueAt: at, Status: models.StatusPending},
		Email:          email,
		MedicationName: "Aspirin",
		Dosage:         "100 mg",
		Timezone:       "UTC",
	}
}

func newPoller(src Source, snd *fakeSender, missed MissedMarker, opts Options) (*Poller, *metrics.Notifier) {
	m := metrics.New().Notifier
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1000
	}
	p := New(src, missed, snd, m, opts, logging.Nop())
	p.now = func() time.Time { return now }
	return p, m
}

func TestRunOnce_FailureDoesNotAbortBatch(t *testing.T) {
	src := &fakeSource{due: []*models.DueReminder{
		due("r1", "a@example.com", now.Add(-time.Minute)),
		due("r2", "b@example.com", now),
		due("r3", "c@example.com", now.Add(30*time.Second)),
	}}
	snd := &fakeSender{failFor: map[string]error{"b@example.com": common.ErrTransientDelivery}}
	p, m := newPoller(src, snd, nil, Options{Lookahead: time.Minute})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 3, Sent: 2}, res)
	assert.Equal(t, []string{"r1", "r3"}, src.marked)
	assert.Equal(t, models.StatusPending, src.due[1].Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles))
}

func TestRunOnce_UsesLookaheadAndBatchSize(t *testing.T) {
	src := &fakeSource{due: []*models.DueReminder{due("r1", "a@example.com", now.Add(2*time.Minute))}}
	p, _ := newPoller(src, &fakeSender{}, nil, Options{Lookahead: time.Minute, BatchSize: 7})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, now.Add(time.Minute), src.before)
	assert.Equal(t, 7, src.limit)
}

func TestRunOnce_SecondRunSendsNothing(t *testing.T) {
	src := &fakeSource{due: []*models.DueReminder{due("r1", "a@example.com", now)}}
	snd := &fakeSender{}
	p, _ := newPoller(src, snd, nil, Options{})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, snd.sent, 1)
}

func TestRunOnce_ListError(t *testing.T) {
	boom := errors.New("db down")
	p, _ := newPoller(&fakeSource{listErr: boom}, &fakeSender{}, nil, Options{})

	_, err := p.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunOnce_MarkSentFailureStillCountsAsSent(t *testing.T) {
	src := &fakeSource{
		due:     []*models.DueReminder{due("r1", "a@example.com", now)},
		markErr: errors.New("update failed"),
	}
	p, m := newPoller(src, &fakeSender{}, nil, Options{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Sent: 1}, res)
	assert.Equal(t, models.StatusPending, src.due[0].Status)
	assert.Zero(t, testutil.ToFloat64(m.Failed))
}

func TestRunOnce_MissingEmailFails(t *testing.T) {
	src := &fakeSource{due: []*models.DueReminder{due("r1", "", now)}}
	snd := &fakeSender{}
	p, _ := newPoller(src, snd, nil, Options{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1}, res)
	assert.Empty(t, snd.sent)
}

func TestRunOnce_MarksMissed(t *testing.T) {
	missed := &fakeMissed{}
	p, _ := newPoller(&fakeSource{}, &fakeSender{}, missed, Options{MissedGrace: 2 * time.Hour})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, missed.calls)
	assert.Equal(t, 2*time.Hour, missed.grace)

	off := &fakeMissed{}
	p, _ = newPoller(&fakeSource{}, &fakeSender{}, off, Options{})
	_, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, off.calls)
}

func TestRunOnce_StaleRemindersAreNotSent(t *testing.T) {
	stale := due("stale", "a@example.com", now.Add(-48*time.Hour))
	fresh := due("fresh", "b@example.com", now)
	src := &fakeSource{due: []*models.DueReminder{stale, fresh}}
	snd := &fakeSender{}
	p, _ := newPoller(src, snd, &fakeMissed{src: src}, Options{MissedGrace: 2 * time.Hour})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Sent: 1}, res)
	assert.Equal(t, []string{"b@example.com|Medication reminder: Aspirin"}, snd.sent)
	assert.Equal(t, models.StatusMissed, stale.Status)
}

func TestRunOnce_OverlappingCycleIsSkipped(t *testing.T) {
	src := &fakeSource{due: []*models.DueReminder{due("r1", "a@example.com", now)}}
	snd := &fakeSender{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p, m := newPoller(src, snd, nil, Options{})

	first := make(chan Result, 1)
	go func() {
		res, _ := p.RunOnce(context.Background())
		first <- res
	}()
	<-snd.entered

	_, err := p.RunOnce(context.Background())
	assert.ErrorIs(t, err, common.ErrCycleInProgress)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedCycles))

	close(snd.block)
	assert.Equal(t, Result{Processed: 1, Sent: 1}, <-first)

	_, err = p.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestCompose(t *testing.T) {
	r := due("r1", "a@example.com", time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	r.Timezone = "Europe/Riga"

	subject, body := Compose(r)
	assert.Equal(t, "Medication reminder: Aspirin", subject)
	assert.Contains(t, body, "It is time to take Aspirin.")
	assert.Contains(t, body, "Dosage: 100 mg")
	assert.Contains(t, body, "Mon, 01 Jan 2024 08:00 EET")

	r.Timezone = "Nowhere/City"
	r.Dosage = ""
	_, body = Compose(r)
	assert.Contains(t, body, "06:00 UTC")
	assert.NotContains(t, body, "Dosage")
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{due: []*models.DueReminder{due("r1", "a@example.com", now)}}
	snd := &fakeSender{}
	p, _ := newPoller(src, snd, nil, Options{Interval: 10 * time.Millisecond})

	p.Start(context.Background())
	require.Eventually(t, func() bool {
		snd.mu.Lock()
		defer snd.mu.Unlock()
		return len(snd.sent) == 1
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()

	snd.mu.Lock()
	snd.sent = nil
	snd.mu.Unlock()
	src.mu.Lock()
	src.due = append(src.due, due("r2", "b@example.com", now))
	src.mu.Unlock()

	p.Start(context.Background())
	require.Eventually(t, func() bool {
		snd.mu.Lock()
		defer snd.mu.Unlock()
		return len(snd.sent) == 1
	}, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	p, m := newPoller(&fakeSource{}, &fakeSender{}, nil, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.Cycles) > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	p.Stop()
}
