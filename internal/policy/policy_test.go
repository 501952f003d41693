package policy_test

import (
	"testing"
	"time"

	"vodsync/internal/config"
	"vodsync/internal/policy"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func defaults() config.Download {
	return config.Download{
		DefaultPeriodDays:  30,
		MaxItems:           0,
		MaxFileSizeMB:      0,
		MaxDurationSeconds: 0,
		Quality:            "best",
	}
}

func TestResolveInheritsDefaults(t *testing.T) {
	src := config.Source{URL: "https://www.youtube.com/@example"}
	eff, err := policy.Resolve(defaults(), config.Cookies{}, src)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if eff.PeriodDays != 30 {
		t.Fatalf("period = %d, want 30", eff.PeriodDays)
	}
	if eff.Quality != "best" {
		t.Fatalf("quality = %q", eff.Quality)
	}
	if eff.CookieFile != "" {
		t.Fatalf("cookie file = %q, want empty", eff.CookieFile)
	}
}

func TestResolveOverrides(t *testing.T) {
	src := config.Source{
		URL:        "https://www.youtube.com/@example",
		PeriodDays: intPtr(7),
		MaxItems:   intPtr(5),
		Quality:    strPtr("worst"),
	}
	eff, err := policy.Resolve(defaults(), config.Cookies{Enabled: true, File: "/tmp/cookies.txt"}, src)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if eff.PeriodDays != 7 {
		t.Fatalf("period = %d, want 7", eff.PeriodDays)
	}
	if eff.MaxItems != 5 {
		t.Fatalf("max items = %d, want 5", eff.MaxItems)
	}
	if eff.Quality != "worst" {
		t.Fatalf("quality = %q", eff.Quality)
	}
	if eff.CookieFile != "/tmp/cookies.txt" {
		t.Fatalf("cookie file = %q", eff.CookieFile)
	}
}

func TestResolveExplicitZeroMeansUnlimited(t *testing.T) {
	src := config.Source{
		URL:        "https://www.youtube.com/@example",
		PeriodDays: intPtr(0),
	}
	eff, err := policy.Resolve(defaults(), config.Cookies{}, src)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if eff.PeriodDays != 0 {
		t.Fatalf("period = %d, want 0", eff.PeriodDays)
	}
	if !eff.Cutoff(time.Now()).IsZero() {
		t.Fatal("unlimited period should have no cutoff")
	}
}

func TestResolveRejectsNegativeOverride(t *testing.T) {
	src := config.Source{
		URL:      "https://www.youtube.com/@example",
		MaxItems: intPtr(-1),
	}
	if _, err := policy.Resolve(defaults(), config.Cookies{}, src); err == nil {
		t.Fatal("negative override should error")
	}
}

func TestCutoff(t *testing.T) {
	eff := policy.Effective{PeriodDays: 30}
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	want := time.Date(2023, 12, 16, 0, 0, 0, 0, time.UTC)
	if got := eff.Cutoff(now); !got.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", got, want)
	}
}

func TestListingCap(t *testing.T) {
	cases := []struct {
		name string
		eff  policy.Effective
		want int
	}{
		{"explicit max wins", policy.Effective{MaxItems: 5, PeriodDays: 30}, 5},
		{"scales with window", policy.Effective{PeriodDays: 30}, 90},
		{"floor for short windows", policy.Effective{PeriodDays: 2}, 10},
		{"fallback when unbounded", policy.Effective{}, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.eff.ListingCap(); got != tc.want {
				t.Fatalf("cap = %d, want %d", got, tc.want)
			}
		})
	}
}
