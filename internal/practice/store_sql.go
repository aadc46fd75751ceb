package practice

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLStore runs on sqlite (modernc) or postgres (pgx stdlib); both accept the
// $n placeholder style.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO practice_sessions
		(id,user_id,status,total,correct,max_attempts,allow_reveal,reveal_forfeits,target_count,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sess.ID, sess.UserID, sess.Status, sess.Total, sess.Correct,
		sess.MaxAttempts, sess.AllowReveal, sess.RevealForfeits, sess.TargetCount,
		sess.CreatedAt.Unix())
	return err
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,user_id,status,total,correct,max_attempts,allow_reveal,reveal_forfeits,target_count,created_at
		FROM practice_sessions WHERE id=$1`, id)
	var sess Session
	var created int64
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Status, &sess.Total, &sess.Correct,
		&sess.MaxAttempts, &sess.AllowReveal, &sess.RevealForfeits, &sess.TargetCount, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	sess.CreatedAt = time.Unix(created, 0)
	return sess, nil
}

// ApplyFinalize bumps the counters in a single UPDATE so concurrent
// finalizes on different instances of the same session never lose an
// increment. The CASE sees the pre-update column values, so total+1 is the
// count after this finalize.
func (s *SQLStore) ApplyFinalize(ctx context.Context, id string, ok bool) (Session, error) {
	correct := 0
	if ok {
		correct = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE practice_sessions SET
		total = total + 1,
		correct = correct + $1,
		status = CASE WHEN target_count > 0 AND total + 1 >= target_count
			THEN 'completed' ELSE 'in_progress' END
		WHERE id=$2`, correct, id)
	if err != nil {
		return Session{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Session{}, ErrSessionNotFound
	}
	return s.GetSession(ctx, id)
}

func (s *SQLStore) PutInstance(ctx context.Context, inst ExerciseInstance) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO practice_instances
		(id,session_id,user_id,kind,public_json,secret_json,answered_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NULL,$7)`,
		inst.ID, inst.SessionID, inst.UserID, inst.Kind,
		string(inst.PublicPayload), string(inst.SecretPayload), inst.CreatedAt.Unix())
	return err
}

func (s *SQLStore) GetInstance(ctx context.Context, id string) (ExerciseInstance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,session_id,user_id,kind,public_json,secret_json,answered_at,created_at
		FROM practice_instances WHERE id=$1`, id)
	var inst ExerciseInstance
	var pub, sec string
	var answered sql.NullInt64
	var created int64
	if err := row.Scan(&inst.ID, &inst.SessionID, &inst.UserID, &inst.Kind, &pub, &sec, &answered, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExerciseInstance{}, ErrInstanceNotFound
		}
		return ExerciseInstance{}, err
	}
	inst.PublicPayload = []byte(pub)
	inst.SecretPayload = []byte(sec)
	inst.CreatedAt = time.Unix(created, 0)
	if answered.Valid {
		t := time.Unix(answered.Int64, 0)
		inst.AnsweredAt = &t
	}
	return inst, nil
}

// MarkAnswered finalizes at most once: the WHERE clause loses the race if a
// concurrent writer already set answered_at.
func (s *SQLStore) MarkAnswered(ctx context.Context, instanceID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE practice_instances SET answered_at=$1 WHERE id=$2 AND answered_at IS NULL`,
		at.Unix(), instanceID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) AppendAttempt(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO practice_attempts
		(id,instance_id,ok,answer_json,reveal_used,explanation,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.InstanceID, a.Ok, string(a.AnswerPayload), a.RevealUsed, a.Explanation, a.CreatedAt.Unix())
	return err
}

func (s *SQLStore) CountAttempts(ctx context.Context, instanceID string) (int, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(CASE WHEN NOT reveal_used THEN 1 END),
		COUNT(CASE WHEN reveal_used THEN 1 END)
		FROM practice_attempts WHERE instance_id=$1`, instanceID)
	var nonReveal, reveals int
	if err := row.Scan(&nonReveal, &reveals); err != nil {
		return 0, false, err
	}
	return nonReveal, reveals > 0, nil
}

// FinalAttempt orders by the insertion sequence, not created_at: timestamps
// are unix seconds and a quick resubmit lands two attempts in the same
// second.
func (s *SQLStore) FinalAttempt(ctx context.Context, instanceID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,instance_id,ok,answer_json,reveal_used,explanation,created_at
		FROM practice_attempts WHERE instance_id=$1 AND NOT reveal_used
		ORDER BY seq DESC LIMIT 1`, instanceID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrInstanceNotFound
	}
	return a, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, instanceID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,instance_id,ok,answer_json,reveal_used,explanation,created_at
		FROM practice_attempts WHERE instance_id=$1 ORDER BY seq`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var a Attempt
	var answer string
	var created int64
	if err := r.Scan(&a.ID, &a.InstanceID, &a.Ok, &answer, &a.RevealUsed, &a.Explanation, &created); err != nil {
		return Attempt{}, err
	}
	if answer != "" {
		a.AnswerPayload = []byte(answer)
	}
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}
