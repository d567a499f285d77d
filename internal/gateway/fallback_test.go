package gateway

import (
	"testing"

	"github.com/timesage/timesage/internal/signal"
)

func TestFallbackDescription(t *testing.T) {
	cases := []struct {
		app, title, want string
	}{
		{"VSCode", "main.ts", "Working in VSCode: main.ts"},
		{"VSCode", "", "Working in VSCode"},
		{"", "main.ts", "Working on main.ts"},
		{"", "", "Working on computer"},
		{"  ", " \t", "Working on computer"},
		{" Slack ", "", "Working in Slack"},
	}
	for _, tc := range cases {
		if got := fallbackDescription(tc.app, tc.title); got != tc.want {
			t.Errorf("fallbackDescription(%q, %q) = %q, want %q", tc.app, tc.title, got, tc.want)
		}
	}
}

func TestSynthesizeSummaryDeterministic(t *testing.T) {
	signals := []signal.Signal{
		signal.New(signal.TypeWindowActivity, "tracker", &signal.WindowActivity{
			AppNames:     []string{"GoLand", "Chrome", "GoLand"},
			WindowTitles: []string{"gateway.go"},
		}),
		signal.New(signal.TypeScreenshotAnalysis, "tracker", &signal.ScreenshotAnalysis{
			Descriptions: []string{"editor"},
		}),
	}

	want := "Worked in GoLand, Chrome. Windows: gateway.go. 1 screenshot captured."
	for i := 0; i < 3; i++ {
		if got := synthesizeSummary(signals); got != want {
			t.Fatalf("run %d: summary = %q, want %q", i, got, want)
		}
	}
}

func TestSynthesizeSummaryEmptyInput(t *testing.T) {
	if got := synthesizeSummary(nil); got != "No activity data available." {
		t.Errorf("summary = %q", got)
	}
}

func TestSynthesizeSummaryTruncatesLongLists(t *testing.T) {
	wa := &signal.WindowActivity{
		AppNames: []string{"A", "B", "C", "D", "E", "F", "G"},
	}
	got := synthesizeSummary([]signal.Signal{signal.New(signal.TypeWindowActivity, "tracker", wa)})
	want := "Worked in A, B, C, D, E and 2 more."
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}
