package practice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-practice/internal/grading"
)

// SessionConfig carries the per-session attempt policy, supplied by the
// session orchestrator at creation time.
type SessionConfig struct {
	MaxAttempts    int  `json:"max_attempts"`
	AllowReveal    bool `json:"allow_reveal"`
	RevealForfeits bool `json:"reveal_forfeits"`
	TargetCount    int  `json:"target_count"`
}

// Service owns the attempt state machine for every instance: attempt counts,
// finalization and reveal transitions.
type Service struct {
	store  Store
	grader grading.Grader
	keys   *KeyIssuer
	agg    *Aggregator
	locks  lockArena
	now    func() time.Time
}

func NewService(store Store, grader grading.Grader, keys *KeyIssuer) *Service {
	return &Service{
		store:  store,
		grader: grader,
		keys:   keys,
		agg:    NewAggregator(store),
		now:    time.Now,
	}
}

// lockArena hands out one mutex per instance so unrelated instances never
// contend. Entries are never reclaimed; instances are finite per process
// lifetime and each entry is a single mutex.
type lockArena struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (a *lockArena) get(id string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locks == nil {
		a.locks = map[string]*sync.Mutex{}
	}
	l, ok := a.locks[id]
	if !ok {
		l = &sync.Mutex{}
		a.locks[id] = l
	}
	return l
}

// CreateSession starts a new practice session for userID.
func (s *Service) CreateSession(ctx context.Context, userID string, cfg SessionConfig) (Session, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	sess := Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         StatusStarted,
		MaxAttempts:    cfg.MaxAttempts,
		AllowReveal:    cfg.AllowReveal,
		RevealForfeits: cfg.RevealForfeits,
		TargetCount:    cfg.TargetCount,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return s.store.GetSession(ctx, id)
}

// Deliver stores a generated instance and issues its opaque key. The public
// payload is what the client gets back; the secret payload never leaves the
// server.
func (s *Service) Deliver(ctx context.Context, sessionID, kind string, public, secret json.RawMessage) (ExerciseInstance, string, error) {
	switch kind {
	case grading.KindSingleChoice, grading.KindMultiChoice, grading.KindNumeric,
		grading.KindVectorDragTarget, grading.KindVectorDragDot,
		grading.KindMatrixInput, grading.KindCodeInput:
	default:
		return ExerciseInstance{}, "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return ExerciseInstance{}, "", err
	}
	inst := ExerciseInstance{
		ID:            uuid.NewString(),
		SessionID:     sess.ID,
		UserID:        sess.UserID,
		Kind:          kind,
		PublicPayload: public,
		SecretPayload: secret,
		CreatedAt:     s.now(),
	}
	if err := s.store.PutInstance(ctx, inst); err != nil {
		return ExerciseInstance{}, "", err
	}
	key, err := s.keys.Issue(inst.ID, inst.UserID)
	if err != nil {
		return ExerciseInstance{}, "", err
	}
	return inst, key, nil
}

// Submit grades one answer against the instance bound to rawKey and applies
// the finalize/reject rules. Duplicate submits after finalization replay the
// stored final outcome instead of erroring, so network retries are harmless.
func (s *Service) Submit(ctx context.Context, ownerID string, rawKey, answer json.RawMessage) (SubmitResponse, error) {
	inst, err := s.resolve(ctx, rawKey, ownerID)
	if err != nil {
		return SubmitResponse{}, err
	}

	lock := s.locks.get(inst.ID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock; the pre-lock read may be stale.
	inst, err = s.store.GetInstance(ctx, inst.ID)
	if err != nil {
		return SubmitResponse{}, err
	}
	sess, err := s.store.GetSession(ctx, inst.SessionID)
	if err != nil {
		return SubmitResponse{}, err
	}
	if inst.AnsweredAt != nil {
		return s.finalizedResponse(ctx, inst.ID, sess.MaxAttempts)
	}

	count, _, err := s.store.CountAttempts(ctx, inst.ID)
	if err != nil {
		return SubmitResponse{}, err
	}
	// Unreachable when finalize-on-exhaustion fires correctly, but checked
	// anyway so a counter bug cannot grant free attempts.
	if count >= sess.MaxAttempts {
		return SubmitResponse{}, ErrAttemptsExhausted
	}

	res, err := s.grader.Grade(ctx, inst.Kind, inst.SecretPayload, answer)
	if err != nil {
		if isMisconfigured(err) {
			// Content-authoring bug: log with full secret context for the
			// operators, mask for the learner.
			log.Printf("GRADER MISCONFIGURED instance=%s kind=%s secret=%s err=%v",
				inst.ID, inst.Kind, string(inst.SecretPayload), err)
		}
		return SubmitResponse{}, err
	}

	attempts := count + 1
	finalized := res.Ok || attempts >= sess.MaxAttempts
	explanation := explainOutcome(res, attempts, sess.MaxAttempts)

	if err := s.store.AppendAttempt(ctx, Attempt{
		ID:            uuid.NewString(),
		InstanceID:    inst.ID,
		Ok:            res.Ok,
		AnswerPayload: answer,
		Explanation:   explanation,
		CreatedAt:     s.now(),
	}); err != nil {
		return SubmitResponse{}, err
	}

	if finalized {
		won, err := s.store.MarkAnswered(ctx, inst.ID, s.now())
		if err != nil {
			return SubmitResponse{}, err
		}
		if !won {
			// Another writer (another node) finalized first.
			return s.finalizedResponse(ctx, inst.ID, sess.MaxAttempts)
		}
		if _, err := s.agg.OnFinalize(ctx, sess.ID, res.Ok); err != nil {
			return SubmitResponse{}, err
		}
	}

	return SubmitResponse{
		Ok:          res.Ok,
		Explanation: explanation,
		Attempts:    attempts,
		Finalized:   finalized,
	}, nil
}

// Reveal shows a valid solution without granting a correct outcome. It never
// consumes a regular attempt; whether it forfeits the instance is session
// policy, not a guess.
func (s *Service) Reveal(ctx context.Context, ownerID string, rawKey json.RawMessage) (SubmitResponse, error) {
	inst, err := s.resolve(ctx, rawKey, ownerID)
	if err != nil {
		return SubmitResponse{}, err
	}

	lock := s.locks.get(inst.ID)
	lock.Lock()
	defer lock.Unlock()

	inst, err = s.store.GetInstance(ctx, inst.ID)
	if err != nil {
		return SubmitResponse{}, err
	}
	sess, err := s.store.GetSession(ctx, inst.SessionID)
	if err != nil {
		return SubmitResponse{}, err
	}
	if !sess.AllowReveal {
		return SubmitResponse{}, ErrRevealDisabled
	}

	res, err := s.grader.Reveal(ctx, inst.Kind, inst.SecretPayload)
	if err != nil {
		if isMisconfigured(err) {
			log.Printf("GRADER MISCONFIGURED instance=%s kind=%s secret=%s err=%v",
				inst.ID, inst.Kind, string(inst.SecretPayload), err)
		}
		return SubmitResponse{}, err
	}

	// Synthetic attempt row for audit; does not count against max_attempts.
	if err := s.store.AppendAttempt(ctx, Attempt{
		ID:          uuid.NewString(),
		InstanceID:  inst.ID,
		RevealUsed:  true,
		Explanation: res.Explanation,
		CreatedAt:   s.now(),
	}); err != nil {
		return SubmitResponse{}, err
	}

	count, _, err := s.store.CountAttempts(ctx, inst.ID)
	if err != nil {
		return SubmitResponse{}, err
	}

	finalized := inst.AnsweredAt != nil
	if sess.RevealForfeits && !finalized {
		won, err := s.store.MarkAnswered(ctx, inst.ID, s.now())
		if err != nil {
			return SubmitResponse{}, err
		}
		if won {
			if _, err := s.agg.OnFinalize(ctx, sess.ID, false); err != nil {
				return SubmitResponse{}, err
			}
		}
		finalized = true
	}

	return SubmitResponse{
		Ok:           false,
		Explanation:  res.Explanation,
		Attempts:     count,
		Finalized:    finalized,
		RevealAnswer: res.RevealAnswer,
	}, nil
}

// Attempts lists the audit log for an instance the caller owns.
func (s *Service) Attempts(ctx context.Context, ownerID string, rawKey json.RawMessage) ([]Attempt, error) {
	inst, err := s.resolve(ctx, rawKey, ownerID)
	if err != nil {
		return nil, err
	}
	return s.store.ListAttempts(ctx, inst.ID)
}

func (s *Service) resolve(ctx context.Context, rawKey json.RawMessage, ownerID string) (ExerciseInstance, error) {
	key, err := NormalizeKey(rawKey)
	if err != nil {
		return ExerciseInstance{}, err
	}
	id, err := s.keys.Resolve(key, ownerID)
	if err != nil {
		return ExerciseInstance{}, err
	}
	inst, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return ExerciseInstance{}, err
	}
	// The key signature already binds the owner; this guards against a
	// reissued key outliving an ownership change.
	if inst.UserID != ownerID {
		return ExerciseInstance{}, ErrForbidden
	}
	return inst, nil
}

// finalizedResponse decides what a submit against an already-finalized
// instance sees. A correct final outcome is replayed verbatim from the stored
// attempt, so duplicate network retries get byte-identical explanations and
// no counter movement. A genuinely exhausted instance rejects with
// AttemptsExhausted before any grading runs. A reveal-forfeited instance
// rejects with AlreadyFinalized even when a wrong attempt preceded the
// forfeit, which is why the attempt count is checked against the budget
// rather than trusting the last graded attempt alone.
func (s *Service) finalizedResponse(ctx context.Context, instanceID string, maxAttempts int) (SubmitResponse, error) {
	final, ferr := s.store.FinalAttempt(ctx, instanceID)
	count, _, err := s.store.CountAttempts(ctx, instanceID)
	if err != nil {
		return SubmitResponse{}, err
	}
	if ferr != nil {
		// Finalized with no graded attempt: a forfeiting reveal.
		return SubmitResponse{}, ErrAlreadyFinalized
	}
	if !final.Ok {
		if count < maxAttempts {
			// Attempts remained when the instance closed, so the forfeit
			// came from a reveal, not exhaustion.
			return SubmitResponse{}, ErrAlreadyFinalized
		}
		return SubmitResponse{}, ErrAttemptsExhausted
	}
	return SubmitResponse{
		Ok:          final.Ok,
		Explanation: final.Explanation,
		Attempts:    count,
		Finalized:   true,
	}, nil
}

func explainOutcome(res grading.Result, attempts, maxAttempts int) string {
	if res.Ok {
		return "correct"
	}
	detail := res.Explanation
	if detail != "" {
		detail = ": " + detail
	}
	remaining := maxAttempts - attempts
	if remaining > 0 {
		return fmt.Sprintf("incorrect, %d attempt(s) remaining%s", remaining, detail)
	}
	return "incorrect, out of attempts" + detail
}

func isMisconfigured(err error) bool {
	return errors.Is(err, grading.ErrMisconfigured)
}
