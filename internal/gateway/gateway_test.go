package gateway

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timesage/timesage/internal/auth"
	"github.com/timesage/timesage/internal/signal"
)

func newTestGateway(t *testing.T, handler http.Handler) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	provider := &auth.StaticProvider{S: validSession("test-token")}
	return New(srv.URL, provider, WithHTTPClient(srv.Client()))
}

func writeTestPNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "shot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}

func TestAnalyzeScreenshotSuccess(t *testing.T) {
	var got analyzePayload
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"success":true,"description":"Editing Go code in an IDE","confidence":0.92}`))
	}))

	res := gw.AnalyzeScreenshot(context.Background(), AnalyzeRequest{
		Path:        writeTestPNG(t),
		AppName:     "GoLand",
		WindowTitle: "transport.go",
	})

	if !res.Success || res.Fallback {
		t.Fatalf("result = %+v, want remote success", res)
	}
	if res.Description != "Editing Go code in an IDE" {
		t.Errorf("description = %q", res.Description)
	}
	if got.Operation != "analyze" {
		t.Errorf("operation = %q, want analyze", got.Operation)
	}
	if got.Image.MimeType != "image/png" || got.Image.Base64 == "" {
		t.Errorf("image payload = {mime %q, %d base64 bytes}", got.Image.MimeType, len(got.Image.Base64))
	}
	if got.RequestID == "" {
		t.Error("requestId should be generated when absent")
	}
}

func TestAnalyzeScreenshotFallsBackOnUnreadableImage(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("broken images must never reach the network")
	}))

	res := gw.AnalyzeScreenshot(context.Background(), AnalyzeRequest{
		Path:        "/nonexistent/shot.png",
		AppName:     "VSCode",
		WindowTitle: "main.ts",
	})

	if res.Success || !res.Fallback {
		t.Fatalf("result = %+v, want fallback", res)
	}
	if res.Description != "Working in VSCode: main.ts" {
		t.Errorf("description = %q, want app+title fallback", res.Description)
	}
	if res.ErrorCode != CodeImageProcessing {
		t.Errorf("errorCode = %q, want %q", res.ErrorCode, CodeImageProcessing)
	}
}

func TestAnalyzeScreenshotFallsBackOnRemoteFailure(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unsupported image"}`, http.StatusUnprocessableEntity)
	}))

	res := gw.AnalyzeScreenshot(context.Background(), AnalyzeRequest{
		Path:    writeTestPNG(t),
		AppName: "Safari",
	})

	if res.Success || !res.Fallback {
		t.Fatalf("result = %+v, want fallback", res)
	}
	if res.Description != "Working in Safari" {
		t.Errorf("description = %q", res.Description)
	}
	if res.Error == "" {
		t.Error("fallback result should carry the failure detail")
	}
}

func TestClassifyActivityHasNoLocalFallback(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad options"}`, http.StatusBadRequest)
	}))

	res := gw.ClassifyActivity(context.Background(), "reviewing pull requests",
		[]ClassifyOption{{ID: "1", Name: "Development"}}, "")

	if res.Success {
		t.Fatal("classification should fail")
	}
	if res.SelectedID != "" || res.SelectedName != "" {
		t.Errorf("result = %+v, classification must not invent a selection", res)
	}
	if res.Error == "" || res.ErrorCode == "" {
		t.Errorf("result = %+v, want error detail for the caller's heuristics", res)
	}
}

func TestClassifyActivitySuccess(t *testing.T) {
	var got classifyPayload
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"success":true,"selectedId":"2","selectedName":"Code Review","confidence":0.81}`))
	}))

	res := gw.ClassifyActivity(context.Background(), "reviewing pull requests",
		[]ClassifyOption{{ID: "1", Name: "Development"}, {ID: "2", Name: "Code Review"}}, "sprint 14")

	if !res.Success || res.SelectedID != "2" || res.SelectedName != "Code Review" {
		t.Fatalf("result = %+v", res)
	}
	if got.Operation != "classify" || len(got.Options) != 2 || got.Context != "sprint 14" {
		t.Errorf("payload = %+v", got)
	}
}

func TestExecuteTaskShortCircuitsWithoutSignals(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty requests must not reach the network")
	}))

	for name, signals := range map[string][]signal.Signal{
		"nil":   nil,
		"empty": {signal.New(signal.TypeWindowActivity, "tracker", &signal.WindowActivity{})},
	} {
		res := gw.ExecuteTask(context.Background(), TaskRequest{
			TaskType: signal.TaskSummarization,
			Signals:  signals,
		})
		if res.Success {
			t.Errorf("%s: result = %+v, want failure", name, res)
		}
		if res.Summary != "No activity data available." {
			t.Errorf("%s: summary = %q", name, res.Summary)
		}
		if res.Fallback {
			t.Errorf("%s: short-circuit is not a fallback", name)
		}
	}
}

func TestExecuteTaskSendsFilteredSignals(t *testing.T) {
	var got summarizePayload
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"success":true,"summary":"Worked on the gateway transport.","confidence":0.9}`))
	}))

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	res := gw.ExecuteTask(context.Background(), TaskRequest{
		TaskType: signal.TaskSummarization,
		Signals: []signal.Signal{
			signal.New(signal.TypeWindowActivity, "tracker", &signal.WindowActivity{AppNames: []string{"GoLand"}}),
			signal.New(signal.TypeJiraContext, "jira", &signal.JiraContext{Issues: []signal.JiraIssue{{Key: "TS-7"}}}),
		},
		Duration:  90 * time.Minute,
		StartTime: start,
		EndTime:   start.Add(90 * time.Minute),
	})

	if !res.Success || res.Summary != "Worked on the gateway transport." {
		t.Fatalf("result = %+v", res)
	}
	if got.Operation != "summarize" || got.TaskType != signal.TaskSummarization {
		t.Errorf("payload header = %+v", got)
	}
	if len(got.Signals) != 1 || got.Signals[0].Type != signal.TypeWindowActivity {
		t.Errorf("signals = %+v, jira context must be filtered out of summarization", got.Signals)
	}
	if got.DurationSeconds != 5400 {
		t.Errorf("durationSeconds = %d, want 5400", got.DurationSeconds)
	}
	if got.StartTime != "2026-03-02T09:00:00Z" {
		t.Errorf("startTime = %q", got.StartTime)
	}
}

func TestExecuteTaskSynthesizesSummaryOnFailure(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model unavailable"}`, http.StatusUnprocessableEntity)
	}))

	res := gw.ExecuteTask(context.Background(), TaskRequest{
		TaskType: signal.TaskSummarization,
		Signals: []signal.Signal{
			signal.New(signal.TypeCalendarEvents, "calendar", &signal.CalendarEvents{
				CurrentEvent: &signal.CalendarEvent{Title: "Sprint planning"},
			}),
			signal.New(signal.TypeWindowActivity, "tracker", &signal.WindowActivity{
				AppNames:     []string{"GoLand", "Chrome"},
				WindowTitles: []string{"transport.go"},
			}),
			signal.New(signal.TypeScreenshotAnalysis, "tracker", &signal.ScreenshotAnalysis{
				Descriptions: []string{"code editor", "browser docs"},
			}),
		},
	})

	if res.Success || !res.Fallback {
		t.Fatalf("result = %+v, want fallback", res)
	}
	want := "In meeting: Sprint planning. Worked in GoLand, Chrome. Windows: transport.go. 2 screenshots captured."
	if res.Summary != want {
		t.Errorf("summary = %q\nwant      %q", res.Summary, want)
	}
	if res.Error == "" {
		t.Error("fallback result should carry the failure detail")
	}
}
