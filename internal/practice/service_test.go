package practice

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mind-engage/mindengage-practice/internal/grading"
)

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	store := NewInMemoryStore()
	grader := grading.NewDefaultGrader()
	keys := NewKeyIssuer("test-signing-secret")
	return NewService(store, grader, keys), store
}

// seedNumeric creates a session and a numeric instance (target 10, tol 0.5)
// and returns the session and the wrapped opaque key.
func seedNumeric(t *testing.T, svc *Service, cfg SessionConfig) (Session, json.RawMessage) {
	t.Helper()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "u1", cfg)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	_, key, err := svc.Deliver(ctx, sess.ID, grading.KindNumeric,
		json.RawMessage(`{"prompt":"what is 5+5?"}`),
		json.RawMessage(`{"target":10,"tolerance":0.5}`))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	return sess, json.RawMessage(`"` + key + `"`)
}

func answer(v string) json.RawMessage { return json.RawMessage(`{"value":` + v + `}`) }

func TestSubmitCorrectFinalizes(t *testing.T) {
	svc, _ := newTestService(t)
	sess, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2, TargetCount: 5})

	resp, err := svc.Submit(context.Background(), "u1", key, answer("10.2"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !resp.Ok || !resp.Finalized || resp.Attempts != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Explanation != "correct" {
		t.Fatalf("explanation %q", resp.Explanation)
	}

	got, err := svc.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Total != 1 || got.Correct != 1 || got.Status != StatusInProgress {
		t.Fatalf("session counters: %+v", got)
	}
}

func TestWrongAnswerKeepsInstanceOpen(t *testing.T) {
	svc, _ := newTestService(t)
	sess, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 3})

	resp, err := svc.Submit(context.Background(), "u1", key, answer("99"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Ok || resp.Finalized {
		t.Fatalf("wrong answer with attempts left must not finalize: %+v", resp)
	}
	if !strings.Contains(resp.Explanation, "2 attempt(s) remaining") {
		t.Fatalf("explanation must say attempts remain: %q", resp.Explanation)
	}

	got, _ := svc.GetSession(context.Background(), sess.ID)
	if got.Total != 0 {
		t.Fatalf("non-finalizing attempt must not touch session totals: %+v", got)
	}
}

func TestIdempotentDuplicateSubmit(t *testing.T) {
	svc, store := newTestService(t)
	_, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2})
	ctx := context.Background()

	first, err := svc.Submit(ctx, "u1", key, answer("10"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := svc.Submit(ctx, "u1", key, answer("10"))
	if err != nil {
		t.Fatalf("duplicate submit must not error: %v", err)
	}
	if !second.Finalized || !first.Finalized {
		t.Fatalf("both responses must be finalized")
	}
	if first.Explanation != second.Explanation || first.Ok != second.Ok || first.Attempts != second.Attempts {
		t.Fatalf("duplicate must replay the identical result: %+v vs %+v", first, second)
	}

	attempts, _ := store.ListAttempts(ctx, instanceIDFromKey(t, svc, key))
	if len(attempts) != 1 {
		t.Fatalf("duplicate submit must not append an attempt, have %d", len(attempts))
	}
}

func TestExhaustionWithTwoAttempts(t *testing.T) {
	svc, _ := newTestService(t)
	sess, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2})
	ctx := context.Background()

	r1, err := svc.Submit(ctx, "u1", key, answer("1"))
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if r1.Finalized {
		t.Fatalf("first wrong answer must not finalize")
	}
	r2, err := svc.Submit(ctx, "u1", key, answer("2"))
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if !r2.Finalized || r2.Ok {
		t.Fatalf("second wrong answer must finalize as incorrect: %+v", r2)
	}
	if !strings.Contains(r2.Explanation, "out of attempts") {
		t.Fatalf("explanation must say out of attempts: %q", r2.Explanation)
	}

	_, err = svc.Submit(ctx, "u1", key, answer("10"))
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("third submission must fail with AttemptsExhausted, got %v", err)
	}

	got, _ := svc.GetSession(ctx, sess.ID)
	if got.Total != 1 || got.Correct != 0 {
		t.Fatalf("exhausted instance counts toward total only: %+v", got)
	}
}

func TestRevealDisabled(t *testing.T) {
	svc, _ := newTestService(t)
	_, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2, AllowReveal: false})

	_, err := svc.Reveal(context.Background(), "u1", key)
	if !errors.Is(err, ErrRevealDisabled) {
		t.Fatalf("expected RevealDisabled, got %v", err)
	}
}

func TestRevealDoesNotConsumeAttemptOrFinalize(t *testing.T) {
	svc, store := newTestService(t)
	sess, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2, AllowReveal: true})
	ctx := context.Background()

	rev, err := svc.Reveal(ctx, "u1", key)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if rev.Ok || rev.Finalized || rev.Attempts != 0 {
		t.Fatalf("reveal must not grade or finalize: %+v", rev)
	}
	if rev.RevealAnswer == nil {
		t.Fatalf("reveal must carry a solution")
	}

	// The learner can still answer for real afterwards.
	resp, err := svc.Submit(ctx, "u1", key, answer("10"))
	if err != nil {
		t.Fatalf("submit after reveal: %v", err)
	}
	if !resp.Ok || !resp.Finalized || resp.Attempts != 1 {
		t.Fatalf("submit after reveal: %+v", resp)
	}

	attempts, _ := store.ListAttempts(ctx, instanceIDFromKey(t, svc, key))
	var reveals int
	for _, a := range attempts {
		if a.RevealUsed {
			reveals++
		}
	}
	if reveals != 1 {
		t.Fatalf("reveal must leave a synthetic audit attempt, have %d", reveals)
	}

	got, _ := svc.GetSession(ctx, sess.ID)
	if got.Correct != 1 {
		t.Fatalf("post-reveal correct answer still counts: %+v", got)
	}
}

func TestRevealForfeitsWhenPolicySaysSo(t *testing.T) {
	svc, _ := newTestService(t)
	sess, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2, AllowReveal: true, RevealForfeits: true})
	ctx := context.Background()

	rev, err := svc.Reveal(ctx, "u1", key)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !rev.Finalized || rev.Ok {
		t.Fatalf("forfeiting reveal must finalize without ok: %+v", rev)
	}

	_, err = svc.Submit(ctx, "u1", key, answer("10"))
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("submit after forfeit must fail AlreadyFinalized, got %v", err)
	}

	got, _ := svc.GetSession(ctx, sess.ID)
	if got.Total != 1 || got.Correct != 0 {
		t.Fatalf("forfeit counts as incorrect finalization: %+v", got)
	}
}

func TestForfeitAfterWrongAttemptIsNotExhaustion(t *testing.T) {
	svc, _ := newTestService(t)
	_, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 3, AllowReveal: true, RevealForfeits: true})
	ctx := context.Background()

	if r, err := svc.Submit(ctx, "u1", key, answer("1")); err != nil || r.Finalized {
		t.Fatalf("wrong answer with attempts left: %+v %v", r, err)
	}
	rev, err := svc.Reveal(ctx, "u1", key)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !rev.Finalized {
		t.Fatalf("forfeiting reveal must finalize: %+v", rev)
	}

	// Attempts remained, so this is a forfeit, not exhaustion.
	_, err = svc.Submit(ctx, "u1", key, answer("10"))
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("submit after forfeit must fail AlreadyFinalized, got %v", err)
	}
}

func TestRevealAfterExhaustionStillWorks(t *testing.T) {
	svc, _ := newTestService(t)
	_, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 1, AllowReveal: true})
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "u1", key, answer("0")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	rev, err := svc.Reveal(ctx, "u1", key)
	if err != nil {
		t.Fatalf("reveal after exhaustion: %v", err)
	}
	if !rev.Finalized || rev.RevealAnswer == nil {
		t.Fatalf("reveal on a finalized instance shows the solution: %+v", rev)
	}
}

func TestForbiddenAcrossUsers(t *testing.T) {
	svc, _ := newTestService(t)
	_, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2})

	_, err := svc.Submit(context.Background(), "u2", key, answer("10"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("another user's key must be Forbidden, got %v", err)
	}
}

func TestSubmitMisconfiguredSecret(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "u1", SessionConfig{MaxAttempts: 2})
	_, key, err := svc.Deliver(ctx, sess.ID, grading.KindNumeric,
		nil, json.RawMessage(`{"no_target_here":true}`))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	_, err = svc.Submit(ctx, "u1", json.RawMessage(`"`+key+`"`), answer("1"))
	if !errors.Is(err, grading.ErrMisconfigured) {
		t.Fatalf("bad secret must surface as misconfiguration, not as incorrect: %v", err)
	}
}

func TestDeliverRejectsUnknownKind(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "u1", SessionConfig{MaxAttempts: 2})
	_, _, err := svc.Deliver(ctx, sess.ID, "essay", nil, json.RawMessage(`{}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestConcurrentSubmitsFinalizeOnce(t *testing.T) {
	svc, store := newTestService(t)
	sess, key := seedNumeric(t, svc, SessionConfig{MaxAttempts: 2})
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	responses := make([]SubmitResponse, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = svc.Submit(ctx, "u1", key, answer("10"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d errored: %v", i, errs[i])
		}
		if !responses[i].Ok || !responses[i].Finalized {
			t.Fatalf("request %d saw a non-final result: %+v", i, responses[i])
		}
	}

	attempts, _ := store.ListAttempts(ctx, instanceIDFromKey(t, svc, key))
	if len(attempts) != 1 {
		t.Fatalf("exactly one attempt must be persisted, have %d", len(attempts))
	}
	got, _ := svc.GetSession(ctx, sess.ID)
	if got.Total != 1 || got.Correct != 1 {
		t.Fatalf("counters must move once: %+v", got)
	}
}

func TestSessionCompletesAtTarget(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "u1", SessionConfig{MaxAttempts: 1, TargetCount: 2})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != StatusStarted {
		t.Fatalf("new session status %q", sess.Status)
	}

	for i, val := range []string{"10", "0"} {
		_, key, err := svc.Deliver(ctx, sess.ID, grading.KindNumeric,
			nil, json.RawMessage(`{"target":10,"tolerance":0.5}`))
		if err != nil {
			t.Fatalf("Deliver %d: %v", i, err)
		}
		if _, err := svc.Submit(ctx, "u1", json.RawMessage(`"`+key+`"`), answer(val)); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	got, _ := svc.GetSession(ctx, sess.ID)
	if got.Status != StatusCompleted || got.Total != 2 || got.Correct != 1 {
		t.Fatalf("session after target reached: %+v", got)
	}
}

// instanceIDFromKey resolves a wrapped key back to its instance id for
// store-level assertions.
func instanceIDFromKey(t *testing.T, svc *Service, rawKey json.RawMessage) string {
	t.Helper()
	key, err := NormalizeKey(rawKey)
	if err != nil {
		t.Fatalf("NormalizeKey: %v", err)
	}
	id, err := svc.keys.Resolve(key, "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return id
}
