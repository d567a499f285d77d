package signal

// Payload is the closed set of per-type signal contents. Implementations are
// plain structs; emptiness and JSON decoding dispatch on the signal type via
// tables rather than reflection.
type Payload interface {
	isPayload()
}

// ScreenshotAnalysis carries AI-generated descriptions of captured screens.
type ScreenshotAnalysis struct {
	Descriptions []string `json:"descriptions"`
}

// WindowActivity carries the apps and window titles observed in the entry.
type WindowActivity struct {
	AppNames     []string `json:"appNames"`
	WindowTitles []string `json:"windowTitles"`
}

// BrowserActivity carries visited domains and page titles.
type BrowserActivity struct {
	Domains    []string `json:"domains"`
	PageTitles []string `json:"pageTitles"`
}

// DetectedTechnologies carries languages/frameworks inferred from activity.
type DetectedTechnologies struct {
	Technologies []string `json:"technologies"`
}

// MeetingTranscription carries a transcript of a meeting overlapping the entry.
type MeetingTranscription struct {
	Transcript   string   `json:"transcript"`
	Participants []string `json:"participants,omitempty"`
}

// MediaPlayback carries what was playing during the entry.
type MediaPlayback struct {
	App     string `json:"app,omitempty"`
	Track   string `json:"track,omitempty"`
	Playing bool   `json:"playing"`
}

// CalendarEvent is a single calendar entry.
type CalendarEvent struct {
	Title     string `json:"title"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// CalendarEvents carries the events around the tracked interval.
type CalendarEvents struct {
	Events       []CalendarEvent `json:"events"`
	CurrentEvent *CalendarEvent  `json:"currentEvent,omitempty"`
}

// TimeContext carries the temporal frame of the entry.
type TimeContext struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	DayOfWeek string `json:"dayOfWeek,omitempty"`
	TimeOfDay string `json:"timeOfDay,omitempty"`
}

// HistoricalPattern is one recurring past assignment.
type HistoricalPattern struct {
	Summary     string `json:"summary"`
	Bucket      string `json:"bucket,omitempty"`
	Occurrences int    `json:"occurrences,omitempty"`
}

// HistoricalPatterns carries recurring assignments from past entries.
type HistoricalPatterns struct {
	Patterns []HistoricalPattern `json:"patterns"`
}

// UserProfile carries who the user is.
type UserProfile struct {
	Name  string   `json:"name,omitempty"`
	Role  string   `json:"role,omitempty"`
	Teams []string `json:"teams,omitempty"`
}

// UserPreferences carries tracking preferences the user configured.
type UserPreferences struct {
	WorkingHours     string   `json:"workingHours,omitempty"`
	PreferredBuckets []string `json:"preferredBuckets,omitempty"`
}

// JiraIssue is a candidate external issue.
type JiraIssue struct {
	Key     string `json:"key"`
	Summary string `json:"summary,omitempty"`
	Status  string `json:"status,omitempty"`
}

// JiraContext carries candidate Jira issues for the entry.
type JiraContext struct {
	Issues []JiraIssue `json:"issues"`
}

// TempoAccount is a candidate billing account.
type TempoAccount struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// TempoContext carries candidate Tempo accounts for the entry.
type TempoContext struct {
	Accounts []TempoAccount `json:"accounts"`
}

// Custom carries producer-defined context for types the gateway does not
// model explicitly.
type Custom struct {
	Data map[string]any `json:"data,omitempty"`
}

func (*ScreenshotAnalysis) isPayload()   {}
func (*WindowActivity) isPayload()       {}
func (*BrowserActivity) isPayload()      {}
func (*DetectedTechnologies) isPayload() {}
func (*MeetingTranscription) isPayload() {}
func (*MediaPlayback) isPayload()        {}
func (*CalendarEvents) isPayload()       {}
func (*TimeContext) isPayload()          {}
func (*HistoricalPatterns) isPayload()   {}
func (*UserProfile) isPayload()          {}
func (*UserPreferences) isPayload()      {}
func (*JiraContext) isPayload()          {}
func (*TempoContext) isPayload()         {}
func (*Custom) isPayload()               {}

// newPayload returns a zero payload of the concrete type for t, used by the
// table-driven JSON decoder. Unknown types decode as Custom.
func newPayload(t Type) Payload {
	switch t {
	case TypeScreenshotAnalysis:
		return &ScreenshotAnalysis{}
	case TypeWindowActivity:
		return &WindowActivity{}
	case TypeBrowserActivity:
		return &BrowserActivity{}
	case TypeDetectedTechnologies:
		return &DetectedTechnologies{}
	case TypeMeetingTranscription:
		return &MeetingTranscription{}
	case TypeMediaPlayback:
		return &MediaPlayback{}
	case TypeCalendarEvents:
		return &CalendarEvents{}
	case TypeTimeContext:
		return &TimeContext{}
	case TypeHistoricalPatterns:
		return &HistoricalPatterns{}
	case TypeUserProfile:
		return &UserProfile{}
	case TypeUserPreferences:
		return &UserPreferences{}
	case TypeJiraContext:
		return &JiraContext{}
	case TypeTempoContext:
		return &TempoContext{}
	default:
		return &Custom{}
	}
}

// emptiness is the per-type "does this payload carry anything" table.
// Types without an entry are non-empty iff the payload is non-nil.
var emptiness = map[Type]func(Payload) bool{
	TypeScreenshotAnalysis: func(p Payload) bool {
		sa, ok := p.(*ScreenshotAnalysis)
		return !ok || len(sa.Descriptions) == 0
	},
	TypeWindowActivity: func(p Payload) bool {
		wa, ok := p.(*WindowActivity)
		return !ok || (len(wa.AppNames) == 0 && len(wa.WindowTitles) == 0)
	},
	TypeBrowserActivity: func(p Payload) bool {
		ba, ok := p.(*BrowserActivity)
		return !ok || (len(ba.Domains) == 0 && len(ba.PageTitles) == 0)
	},
	TypeDetectedTechnologies: func(p Payload) bool {
		dt, ok := p.(*DetectedTechnologies)
		return !ok || len(dt.Technologies) == 0
	},
	TypeMeetingTranscription: func(p Payload) bool {
		mt, ok := p.(*MeetingTranscription)
		return !ok || mt.Transcript == ""
	},
	TypeMediaPlayback: func(p Payload) bool {
		mp, ok := p.(*MediaPlayback)
		return !ok || (mp.Track == "" && mp.App == "")
	},
	TypeCalendarEvents: func(p Payload) bool {
		ce, ok := p.(*CalendarEvents)
		return !ok || (len(ce.Events) == 0 && ce.CurrentEvent == nil)
	},
	TypeHistoricalPatterns: func(p Payload) bool {
		hp, ok := p.(*HistoricalPatterns)
		return !ok || len(hp.Patterns) == 0
	},
	TypeJiraContext: func(p Payload) bool {
		jc, ok := p.(*JiraContext)
		return !ok || len(jc.Issues) == 0
	},
	TypeTempoContext: func(p Payload) bool {
		tc, ok := p.(*TempoContext)
		return !ok || len(tc.Accounts) == 0
	},
	TypeCustom: func(p Payload) bool {
		c, ok := p.(*Custom)
		return !ok || len(c.Data) == 0
	},
}

// Empty reports whether the signal carries no usable content.
func (s Signal) Empty() bool {
	if s.Payload == nil {
		return true
	}
	if fn, ok := emptiness[s.Type]; ok {
		return fn(s.Payload)
	}
	return false
}
