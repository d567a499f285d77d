package gateway

import (
	"fmt"
	"strings"

	"github.com/timesage/timesage/internal/signal"
)

// fallbackDescription builds a usable entry description from whatever window
// metadata is at hand. Same inputs always give the same string.
func fallbackDescription(appName, windowTitle string) string {
	appName = strings.TrimSpace(appName)
	windowTitle = strings.TrimSpace(windowTitle)
	switch {
	case appName != "" && windowTitle != "":
		return fmt.Sprintf("Working in %s: %s", appName, windowTitle)
	case appName != "":
		return fmt.Sprintf("Working in %s", appName)
	case windowTitle != "":
		return fmt.Sprintf("Working on %s", windowTitle)
	default:
		return "Working on computer"
	}
}

// synthesizeSummary produces a rule-based narrative from the filtered signal
// set when the remote summarizer is unreachable. Purely deterministic: no
// randomness, no clock reads.
func synthesizeSummary(signals []signal.Signal) string {
	var (
		apps        []string
		titles      []string
		seenApp     = map[string]bool{}
		seenTitle   = map[string]bool{}
		screenshots int
		meeting     string
	)

	for _, s := range signals {
		switch p := s.Payload.(type) {
		case *signal.WindowActivity:
			for _, a := range p.AppNames {
				if a = strings.TrimSpace(a); a != "" && !seenApp[a] {
					seenApp[a] = true
					apps = append(apps, a)
				}
			}
			for _, w := range p.WindowTitles {
				if w = strings.TrimSpace(w); w != "" && !seenTitle[w] {
					seenTitle[w] = true
					titles = append(titles, w)
				}
			}
		case *signal.ScreenshotAnalysis:
			screenshots += len(p.Descriptions)
		case *signal.CalendarEvents:
			if p.CurrentEvent != nil && p.CurrentEvent.Title != "" {
				meeting = p.CurrentEvent.Title
			}
		}
	}

	var parts []string
	if meeting != "" {
		parts = append(parts, fmt.Sprintf("In meeting: %s", meeting))
	}
	if len(apps) > 0 {
		parts = append(parts, fmt.Sprintf("Worked in %s", joinList(apps, 5)))
	}
	if len(titles) > 0 {
		parts = append(parts, fmt.Sprintf("Windows: %s", joinList(titles, 3)))
	}
	if screenshots > 0 {
		noun := "screenshots"
		if screenshots == 1 {
			noun = "screenshot"
		}
		parts = append(parts, fmt.Sprintf("%d %s captured", screenshots, noun))
	}

	if len(parts) == 0 {
		return "No activity data available."
	}
	return strings.Join(parts, ". ") + "."
}

// joinList joins up to max items with commas, appending a count for the rest.
func joinList(items []string, max int) string {
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:max], ", "), len(items)-max)
}
