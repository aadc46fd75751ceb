package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"learner", "practice:submit", true},
		{"learner", "practice:reveal", true},
		{"learner", "session:create", true},
		{"learner", "practice:generate", false},
		{"learner", "session:view-all", false},
		{"author", "practice:generate", true},
		{"author", "session:view-all", true},
		{"author", "practice:submit", false},
		{"admin", "practice:generate", true},
		{"admin", "session:view-own", true},
		{"nobody", "practice:submit", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Has(%s, %s)=%v want %v", tc.role, tc.perm, got, tc.want)
		}
	}

	if !c.Any("learner", "session:view-own", "session:view-all") {
		t.Fatalf("learner must pass the session summary gate")
	}
	if c.Any("author", "practice:submit", "practice:reveal") {
		t.Fatalf("author must not submit or reveal answers")
	}
}

func TestPrefixWildcard(t *testing.T) {
	c := NewChecker(map[string][]string{"grader": {"practice:*"}})
	if !c.Has("grader", "practice:submit") {
		t.Fatalf("prefix wildcard must cover its namespace")
	}
	if c.Has("grader", "session:create") {
		t.Fatalf("prefix wildcard must not escape its namespace")
	}
}
