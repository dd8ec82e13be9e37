package cronexpr

import (
	"errors"
	"testing"
	"time"
)

func TestParseRejectsMalformedExpressions(t *testing.T) {
	cases := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"a * * * *",
		"1-5 * * * *", // ranges are not part of the grammar
		"*/5 * * * *", // neither are steps
		"1,,2 * * * *",
	}

	for _, expr := range cases {
		if _, err := Parse(expr); !errors.Is(err, ErrInvalidExpression) {
			t.Errorf("Parse(%q) = %v, want ErrInvalidExpression", expr, err)
		}
	}
}

func TestParseAcceptsValidExpressions(t *testing.T) {
	cases := []string{
		"* * * * *",
		"0 0 * * *",
		"30 6 * * 1",
		"0,15,30,45 * * * *",
		"0 9 1,15 * *",
		"59 23 31 12 6",
	}

	for _, expr := range cases {
		if _, err := Parse(expr); err != nil {
			t.Errorf("Parse(%q) returned unexpected error: %v", expr, err)
		}
	}
}

func TestMatchesEveryMinuteWildcard(t *testing.T) {
	sched, err := Parse("* * * * *")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	instants := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 12, 34, 56, 789, time.UTC),
		time.Date(2028, 2, 29, 23, 59, 0, 0, time.UTC),
	}
	for _, instant := range instants {
		if !sched.Matches(instant) {
			t.Errorf("wildcard schedule should match %v", instant)
		}
	}
}

func TestMatchesSpecificFields(t *testing.T) {
	// Monday 2025-06-02 06:30
	sched, err := Parse("30 6 * * 1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	monday := time.Date(2025, 6, 2, 6, 30, 0, 0, time.UTC)
	if !sched.Matches(monday) {
		t.Errorf("schedule should match Monday 06:30")
	}

	tuesday := monday.AddDate(0, 0, 1)
	if sched.Matches(tuesday) {
		t.Errorf("schedule should not match Tuesday")
	}

	if sched.Matches(monday.Add(time.Minute)) {
		t.Errorf("schedule should not match 06:31")
	}
}

func TestNextIsStrictlyAfterAndMatches(t *testing.T) {
	exprs := []string{
		"* * * * *",
		"0 0 * * *",
		"15 14 1 * *",
		"0,30 9 * * 5",
		"0 12 29 2 *", // Feb 29, still satisfiable within 4 years
	}
	after := time.Date(2025, 3, 10, 11, 7, 42, 0, time.UTC)

	for _, expr := range exprs {
		sched, err := Parse(expr)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", expr, err)
		}

		next, err := sched.Next(after)
		if err != nil {
			t.Fatalf("Next(%q) failed: %v", expr, err)
		}
		if !next.After(after) {
			t.Errorf("Next(%q) = %v, want strictly after %v", expr, next, after)
		}
		if !sched.Matches(next) {
			t.Errorf("Next(%q) = %v does not match its own schedule", expr, next)
		}
	}
}

func TestNextSkipsCurrentMinute(t *testing.T) {
	sched, err := Parse("* * * * *")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	after := time.Date(2025, 3, 10, 11, 7, 0, 0, time.UTC)
	next, err := sched.Next(after)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	want := time.Date(2025, 3, 10, 11, 8, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestNextImpossibleExpression(t *testing.T) {
	// February 30th never exists
	_, err := NextOccurrence("0 0 30 2 *", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNoUpcomingOccurrence) {
		t.Errorf("expected ErrNoUpcomingOccurrence, got %v", err)
	}
}

func TestMatchesConvenience(t *testing.T) {
	ok, err := Matches("* * * * *", time.Now())
	if err != nil || !ok {
		t.Errorf("Matches wildcard = (%v, %v), want (true, nil)", ok, err)
	}

	if _, err := Matches("bogus", time.Now()); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("expected ErrInvalidExpression, got %v", err)
	}
}
