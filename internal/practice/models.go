package practice

import (
	"encoding/json"
	"time"
)

// Session statuses.
const (
	StatusStarted    = "started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// ExerciseInstance is one generated question delivered to a learner. The
// secret payload holds the correct answer and grading parameters; it is never
// serialized to the client.
type ExerciseInstance struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id"`
	Kind          string          `json:"kind"`
	PublicPayload json.RawMessage `json:"public_payload"`
	SecretPayload json.RawMessage `json:"-"`
	// AnsweredAt is nil until the instance finalizes; it is set exactly once.
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Attempt is one submission against an instance. Append-only.
type Attempt struct {
	ID            string          `json:"id"`
	InstanceID    string          `json:"instance_id"`
	Ok            bool            `json:"ok"`
	AnswerPayload json.RawMessage `json:"answer_payload,omitempty"`
	RevealUsed    bool            `json:"reveal_used"`
	// Explanation is stored so a duplicate submit after finalization can
	// replay the exact response the client saw the first time.
	Explanation string    `json:"explanation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session groups instances and carries the attempt policy.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	Total          int       `json:"total"`
	Correct        int       `json:"correct"`
	MaxAttempts    int       `json:"max_attempts"`
	AllowReveal    bool      `json:"allow_reveal"`
	RevealForfeits bool      `json:"reveal_forfeits"`
	TargetCount    int       `json:"target_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// SubmitResponse is returned for both submits and reveals.
type SubmitResponse struct {
	Ok           bool        `json:"ok"`
	Explanation  string      `json:"explanation"`
	Attempts     int         `json:"attempts"`
	Finalized    bool        `json:"finalized"`
	RevealAnswer interface{} `json:"reveal_answer,omitempty"`
}
