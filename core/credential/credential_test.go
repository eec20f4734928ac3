package credential

import (
	"context"
	"strings"
	"testing"
)

func TestSanitizePrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Nairobi", want: "NAIROB"},
		{name: "spaces and punctuation", in: "St. Mary's High", want: "STMARY"},
		{name: "digits kept", in: "A1 Academy", want: "A1ACAD"},
		{name: "short name", in: "Ace", want: "ACE"},
		{name: "non-ascii stripped", in: "École Bleue", want: "COLEBL"},
		{name: "empty falls back", in: "", want: "SCH"},
		{name: "only punctuation falls back", in: "!!! ---", want: "SCH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePrefix(tt.in); got != tt.want {
				t.Errorf("SanitizePrefix(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestID(t *testing.T) {
	ctx := context.Background()
	neverTaken := func(context.Context, string) (bool, error) { return false, nil }

	id, err := ID(ctx, "Greenwood High", "STU", neverTaken)
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	if !strings.HasPrefix(id, "GREENW"+"STU") {
		t.Errorf("ID() = %q; want prefix %q", id, "GREENWSTU")
	}
	suffix := strings.TrimPrefix(id, "GREENWSTU")
	if len(suffix) != 6 {
		t.Errorf("ID() suffix = %q; want 6 digits", suffix)
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			t.Errorf("ID() suffix %q contains non-digit %q", suffix, r)
		}
	}
}

func TestID_retriesThenFails(t *testing.T) {
	ctx := context.Background()

	var calls int
	alwaysTaken := func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}
	if _, err := ID(ctx, "X", "TCH", alwaysTaken); err != ErrExhausted {
		t.Fatalf("ID() error = %v; want %v", err, ErrExhausted)
	}
	if calls != maxAttempts {
		t.Errorf("ID() tried %d times; want %d", calls, maxAttempts)
	}

	// a collision then a free slot succeeds
	calls = 0
	takenOnce := func(context.Context, string) (bool, error) {
		calls++
		return calls == 1, nil
	}
	if _, err := ID(ctx, "X", "TCH", takenOnce); err != nil {
		t.Errorf("ID() error = %v; want nil", err)
	}
}

func TestPassword(t *testing.T) {
	has := func(s, set string) bool { return strings.ContainsAny(s, set) }

	for _, length := range []int{0, 10, 12, 32} {
		pwd, err := Password(length)
		if err != nil {
			t.Fatalf("Password(%d) error = %v", length, err)
		}
		wantLen := length
		if wantLen < 10 {
			wantLen = 10
		}
		if len(pwd) != wantLen {
			t.Errorf("Password(%d) len = %d; want %d", length, len(pwd), wantLen)
		}
		for _, set := range []string{upperChars, lowerChars, digitChars, specialChars} {
			if !has(pwd, set) {
				t.Errorf("Password(%d) = %q; missing a char from %q", length, pwd, set)
			}
		}
		if strings.ContainsAny(pwd, "0O1lI") {
			t.Errorf("Password(%d) = %q; contains ambiguous glyphs", length, pwd)
		}
	}
}

func TestPassword_distinct(t *testing.T) {
	p1, err := Password(12)
	if err != nil {
		t.Fatalf("Password() error = %v", err)
	}
	p2, err := Password(12)
	if err != nil {
		t.Fatalf("Password() error = %v", err)
	}
	if p1 == p2 {
		t.Errorf("Password() returned the same value twice: %q", p1)
	}
}
