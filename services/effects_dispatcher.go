package services

import (
	"context"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"weHabitAPI/internal/metrics"
	"weHabitAPI/internal/notification"
	"weHabitAPI/internal/types/feed"
)

type EffectKind string

const (
	EffectLogActivity      EffectKind = "log_activity"
	EffectRemoveActivity   EffectKind = "remove_activity"
	EffectAddExperience    EffectKind = "add_experience"
	EffectChallengeCheckIn EffectKind = "challenge_check_in"
	EffectChallengeUndo    EffectKind = "challenge_undo"
	EffectPush             EffectKind = "push"
)

// Effect is a best-effort side effect emitted after a primary write commits.
// A failed effect never rolls the primary write back.
type Effect struct {
	Kind          EffectKind
	UserID        string
	EventType     feed.EventType
	Title         string
	Description   string
	CorrelationID string
	XP            int
	HabitName     string
	Push          notification.Message
}

type ActivityEmitter interface {
	LogActivity(ctx context.Context, userID string, t feed.EventType, title, description, correlationID string) error
	RemoveActivity(ctx context.Context, userID string, t feed.EventType, correlationID string) error
}

type ExperienceAwarder interface {
	AddExperience(ctx context.Context, userID string, amount int) error
}

// ChallengePropagator applies a habit check-in to matching challenges and
// returns the follow-up effects of the resulting score changes.
type ChallengePropagator interface {
	PropagateCheckIn(ctx context.Context, userID, habitName string) ([]Effect, error)
	PropagateUndo(ctx context.Context, userID, habitName string) ([]Effect, error)
}

type PushNotifier interface {
	NotifyUser(ctx context.Context, userID string, msg notification.Message) error
}

// Emitter is what services use to hand effects off.
type Emitter interface {
	Emit(effects ...Effect)
}

// EffectDispatcher runs effects on a worker pool. Effects of one user hash
// to the same worker so they are applied in the order they were emitted.
type EffectDispatcher struct {
	activity   ActivityEmitter
	experience ExperienceAwarder
	challenges ChallengePropagator
	push       PushNotifier

	queues      []chan Effect
	maxAttempts int
	log         *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond
}

func NewEffectDispatcher(workers, queueSize, maxAttempts int, log *zap.Logger) *EffectDispatcher {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	d := &EffectDispatcher{
		queues:      make([]chan Effect, workers),
		maxAttempts: maxAttempts,
		log:         log,
	}
	d.idle = sync.NewCond(&d.pendingMu)

	for i := range d.queues {
		d.queues[i] = make(chan Effect, queueSize)
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *EffectDispatcher) SetActivityEmitter(a ActivityEmitter) { d.activity = a }
func (d *EffectDispatcher) SetExperienceAwarder(x ExperienceAwarder) { d.experience = x }
func (d *EffectDispatcher) SetChallengePropagator(c ChallengePropagator) { d.challenges = c }
func (d *EffectDispatcher) SetPushNotifier(p PushNotifier) { d.push = p }

func (d *EffectDispatcher) shard(userID string) chan Effect {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return d.queues[h.Sum32()%uint32(len(d.queues))]
}

func (d *EffectDispatcher) addPending(n int) {
	d.pendingMu.Lock()
	d.pending += n
	metrics.EffectQueueDepth.Set(float64(d.pending))
	if d.pending == 0 {
		d.idle.Broadcast()
	}
	d.pendingMu.Unlock()
}

// Emit queues effects. A full queue blocks for up to five seconds before the
// effect is dropped.
func (d *EffectDispatcher) Emit(effects ...Effect) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range effects {
		if d.stopped {
			d.log.Warn("effect dropped: dispatcher stopped", zap.String("kind", string(e.Kind)), zap.String("user_id", e.UserID))
			metrics.EffectsProcessed.WithLabelValues(string(e.Kind), "dropped").Inc()
			continue
		}

		d.addPending(1)
		select {
		case d.shard(e.UserID) <- e:
		case <-time.After(5 * time.Second):
			d.addPending(-1)
			d.log.Warn("effect dropped: queue full", zap.String("kind", string(e.Kind)), zap.String("user_id", e.UserID))
			metrics.EffectsProcessed.WithLabelValues(string(e.Kind), "dropped").Inc()
		}
	}
}

// Flush blocks until every queued effect, follow-ups included, has finished.
func (d *EffectDispatcher) Flush() {
	d.pendingMu.Lock()
	for d.pending > 0 {
		d.idle.Wait()
	}
	d.pendingMu.Unlock()
}

// Stop refuses new effects, drains the queues and waits for the workers.
func (d *EffectDispatcher) Stop() {
	d.log.Info("stopping effect dispatcher")
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("effect dispatcher stopped")
}

func (d *EffectDispatcher) worker(id int) {
	defer d.wg.Done()
	for e := range d.queues[id] {
		d.process(e)
		d.addPending(-1)
	}
}

// process runs e and then, depth first, any follow-ups it produced.
func (d *EffectDispatcher) process(e Effect) {
	queue := []Effect{e}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		followUps := d.runWithRetry(next)
		queue = append(followUps, queue...)
	}
}

func (d *EffectDispatcher) runWithRetry(e Effect) []Effect {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var followUps []Effect
	operation := func() error {
		more, err := d.handle(ctx, e)
		followUps = append(followUps, more...)
		if isClientError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.maxAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			d.log.Debug("effect attempt failed",
				zap.String("kind", string(e.Kind)),
				zap.String("user_id", e.UserID),
				zap.Error(err),
				zap.Duration("backoff", wait))
		},
	)
	if err != nil {
		d.log.Warn("effect failed",
			zap.String("kind", string(e.Kind)),
			zap.String("user_id", e.UserID),
			zap.Int("attempts", d.maxAttempts),
			zap.Error(err))
		metrics.EffectsProcessed.WithLabelValues(string(e.Kind), "failed").Inc()
	} else {
		metrics.EffectsProcessed.WithLabelValues(string(e.Kind), "ok").Inc()
	}
	return followUps
}

var errUnknownEffect = errors.New("unknown effect kind")

// isClientError reports whether err is a 4xx service error that a retry
// cannot fix. Conflicts stay retryable.
func isClientError(err error) bool {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		return false
	}
	code := svcErr.GetStatusCode()
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusConflict
}

func (d *EffectDispatcher) handle(ctx context.Context, e Effect) ([]Effect, error) {
	switch e.Kind {
	case EffectLogActivity:
		if d.activity == nil {
			return nil, nil
		}
		return nil, d.activity.LogActivity(ctx, e.UserID, e.EventType, e.Title, e.Description, e.CorrelationID)
	case EffectRemoveActivity:
		if d.activity == nil {
			return nil, nil
		}
		return nil, d.activity.RemoveActivity(ctx, e.UserID, e.EventType, e.CorrelationID)
	case EffectAddExperience:
		if d.experience == nil {
			return nil, nil
		}
		return nil, d.experience.AddExperience(ctx, e.UserID, e.XP)
	case EffectChallengeCheckIn:
		if d.challenges == nil {
			return nil, nil
		}
		return d.challenges.PropagateCheckIn(ctx, e.UserID, e.HabitName)
	case EffectChallengeUndo:
		if d.challenges == nil {
			return nil, nil
		}
		return d.challenges.PropagateUndo(ctx, e.UserID, e.HabitName)
	case EffectPush:
		if d.push == nil {
			return nil, nil
		}
		return nil, d.push.NotifyUser(ctx, e.UserID, e.Push)
	}
	return nil, backoff.Permanent(errUnknownEffect)
}
