// Package signal defines the typed context signals consumed by the AI task
// gateway: a closed set of signal types, their derived categories, and the
// per-task filtering rules that decide which signals accompany each request.
package signal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of context a signal carries.
type Type string

const (
	TypeScreenshotAnalysis   Type = "screenshot_analysis"
	TypeWindowActivity       Type = "window_activity"
	TypeBrowserActivity      Type = "browser_activity"
	TypeDetectedTechnologies Type = "detected_technologies"
	TypeMeetingTranscription Type = "meeting_transcription"
	TypeMediaPlayback        Type = "media_playback"
	TypeCalendarEvents       Type = "calendar_events"
	TypeTimeContext          Type = "time_context"
	TypeHistoricalPatterns   Type = "historical_patterns"
	TypeUserProfile          Type = "user_profile"
	TypeUserPreferences      Type = "user_preferences"
	TypeJiraContext          Type = "jira_context"
	TypeTempoContext         Type = "tempo_context"
	TypeCustom               Type = "custom"
)

// Category groups signal types by what they describe.
type Category string

const (
	CategoryUser     Category = "user"
	CategoryActivity Category = "activity"
	CategoryTemporal Category = "temporal"
	CategoryExternal Category = "external"
)

// categories is the canonical type → category mapping. Every known type has
// an entry; anything missing (including TypeCustom) falls back to activity.
var categories = map[Type]Category{
	TypeScreenshotAnalysis:   CategoryActivity,
	TypeWindowActivity:       CategoryActivity,
	TypeBrowserActivity:      CategoryActivity,
	TypeDetectedTechnologies: CategoryActivity,
	TypeMeetingTranscription: CategoryActivity,
	TypeMediaPlayback:        CategoryActivity,
	TypeCalendarEvents:       CategoryTemporal,
	TypeTimeContext:          CategoryTemporal,
	TypeHistoricalPatterns:   CategoryTemporal,
	TypeUserProfile:          CategoryUser,
	TypeUserPreferences:      CategoryUser,
	TypeJiraContext:          CategoryExternal,
	TypeTempoContext:         CategoryExternal,
}

// CategoryOf returns the canonical category for a signal type.
// Unknown and custom types map to CategoryActivity.
func CategoryOf(t Type) Category {
	if c, ok := categories[t]; ok {
		return c
	}
	return CategoryActivity
}

// Signal is a typed, timestamped fragment of context supplied to an AI task.
// Category is always derived from Type; construct signals with New so the
// two never disagree.
type Signal struct {
	Type       Type      `json:"type"`
	Category   Category  `json:"category"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    Payload   `json:"payload"`
}

// New creates a signal with the category derived from the type.
func New(t Type, source string, payload Payload) Signal {
	return Signal{
		Type:       t,
		Category:   CategoryOf(t),
		Source:     source,
		Confidence: 1,
		Timestamp:  time.Now(),
		Payload:    payload,
	}
}

// UnmarshalJSON decodes a signal, dispatching the payload decode on the type
// and re-deriving the category so wire input cannot violate the mapping.
func (s *Signal) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       Type            `json:"type"`
		Source     string          `json:"source"`
		Confidence float64         `json:"confidence"`
		Timestamp  time.Time       `json:"timestamp"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Type = raw.Type
	s.Category = CategoryOf(raw.Type)
	s.Source = raw.Source
	s.Confidence = raw.Confidence
	s.Timestamp = raw.Timestamp
	s.Payload = nil

	if len(raw.Payload) == 0 || string(raw.Payload) == "null" {
		return nil
	}

	p := newPayload(raw.Type)
	if err := json.Unmarshal(raw.Payload, p); err != nil {
		return fmt.Errorf("decode %s payload: %w", raw.Type, err)
	}
	s.Payload = p
	return nil
}

// TaskType is the kind of AI operation a request asks for.
type TaskType string

const (
	TaskSummarization    TaskType = "summarization"
	TaskClassification   TaskType = "classification"
	TaskAccountSelection TaskType = "account_selection"
	TaskSplitSuggestion  TaskType = "split_suggestion"
)

// taskCategories is the fixed per-task category requirement table.
var taskCategories = map[TaskType][]Category{
	TaskSummarization:    {CategoryActivity, CategoryTemporal},
	TaskClassification:   {CategoryActivity},
	TaskAccountSelection: {CategoryActivity, CategoryExternal},
	TaskSplitSuggestion:  {CategoryActivity, CategoryTemporal},
}

// FilterForTask returns the signals whose category the task requires,
// preserving order. includeUserContext adds the user category regardless of
// task. The input slice is never mutated. Signals outside the required set
// are dropped so unrelated context (e.g. Jira issues on a summarization
// call) cannot bias the remote model.
func FilterForTask(signals []Signal, task TaskType, includeUserContext bool) []Signal {
	required := make(map[Category]bool, 4)
	for _, c := range taskCategories[task] {
		required[c] = true
	}
	if includeUserContext {
		required[CategoryUser] = true
	}

	filtered := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if required[s.Category] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// HasMeaningfulData reports whether at least one signal carries usable
// content, using the per-type emptiness rules.
func HasMeaningfulData(signals []Signal) bool {
	for _, s := range signals {
		if !s.Empty() {
			return true
		}
	}
	return false
}
