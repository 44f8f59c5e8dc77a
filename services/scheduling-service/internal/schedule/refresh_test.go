package schedule

import (
	"testing"
	"time"
)

func TestRefreshPolicyShouldRefresh(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := DefaultRefreshPolicy()

	if !p.ShouldRefresh(base) {
		t.Fatalf("first refresh should always be due")
	}

	p = p.MarkRefreshed(base)

	cases := []struct {
		name  string
		after time.Duration
		want  bool
	}{
		{"immediately after", 0, false},
		{"within debounce", 2 * time.Second, false},
		{"past debounce but before interval", 5 * time.Second, false},
		{"exactly at interval", 10 * time.Second, true},
		{"well past interval", time.Minute, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.ShouldRefresh(base.Add(tc.after))
			if got != tc.want {
				t.Fatalf("ShouldRefresh(+%s) = %v, want %v", tc.after, got, tc.want)
			}
		})
	}
}

func TestRefreshPolicyMarkRefreshedAdvances(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := DefaultRefreshPolicy().MarkRefreshed(base)
	p = p.MarkRefreshed(base.Add(15 * time.Second))

	if p.ShouldRefresh(base.Add(20 * time.Second)) {
		t.Fatalf("refresh 5s after the last one should be suppressed")
	}
	if !p.ShouldRefresh(base.Add(25 * time.Second)) {
		t.Fatalf("refresh a full interval after the last one should be due")
	}
}
