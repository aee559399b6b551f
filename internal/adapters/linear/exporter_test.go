package linear

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/novatra/novabot/internal/tasks"
	"github.com/novatra/novabot/internal/testutil"
)

func fullConfig() *Config {
	return &Config{
		APIKey:                testutil.FakeLinearAPIKey,
		TeamID:                testutil.FakeLinearTeamID,
		ProjectID:             "project-1",
		StateTodoID:           "state-todo",
		StateBacklogID:        "state-backlog",
		LabelUrgentID:         "label-urgent",
		LabelHighPriorityID:   "label-high",
		LabelMediumPriorityID: "label-medium",
		LabelLowPriorityID:    "label-low",
	}
}

func TestMapping(t *testing.T) {
	tests := []struct {
		priority  tasks.Priority
		wantState string
		wantLabel string
	}{
		{tasks.PriorityUrgent, "state-todo", "label-urgent"},
		{tasks.PriorityHigh, "state-todo", "label-high"},
		{tasks.PriorityMedium, "state-todo", "label-medium"},
		{tasks.PriorityLow, "state-backlog", "label-low"},
		{"nonsense", "state-todo", "label-medium"},
	}

	e := NewExporter(fullConfig())
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			state, label := e.Mapping(tt.priority)
			if state != tt.wantState || label != tt.wantLabel {
				t.Errorf("Mapping(%s) = (%s, %s), want (%s, %s)", tt.priority, state, label, tt.wantState, tt.wantLabel)
			}
		})
	}
}

func TestMappingWithoutBacklog(t *testing.T) {
	cfg := fullConfig()
	cfg.StateBacklogID = ""
	state, _ := NewExporter(cfg).Mapping(tasks.PriorityLow)
	if state != "state-todo" {
		t.Errorf("low priority without backlog state should fall back to todo, got %q", state)
	}
}

func TestTitle(t *testing.T) {
	exact := strings.Repeat("a", 80)
	if got := Title(exact); got != exact {
		t.Errorf("80-char title should be kept, got %d chars", len(got))
	}

	long := strings.Repeat("b", 81)
	got := Title(long)
	if len(got) != 80 || !strings.HasSuffix(got, "...") || got[:77] != long[:77] {
		t.Errorf("Title(81 chars) = %q", got)
	}
}

func TestDescription(t *testing.T) {
	task := tasks.Task{Text: "Ship it", ChannelID: 555, SourceMessageLink: "https://discord.com/channels/1/555/9"}
	want := "Generated from Discord by Alice.\n\nShip it\n\nSource: https://discord.com/channels/1/555/9\n\nChannel: <#555>"
	if got := Description(task, "Alice"); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}

	task.SourceMessageLink = ""
	want = "Generated from Discord by Alice.\n\nShip it\n\nChannel: <#555>"
	if got := Description(task, "Alice"); got != want {
		t.Errorf("Description() without source = %q, want %q", got, want)
	}
}

func TestUnavailable(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"no api key", &Config{TeamID: "t", StateTodoID: "s"}},
		{"no team", &Config{APIKey: "k", StateTodoID: "s"}},
		{"no todo state", &Config{APIKey: "k", TeamID: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExporter(tt.cfg, WithEndpoint("http://127.0.0.1:1/unused"))
			_, _, err := e.ExportTask(context.Background(), tasks.Task{ID: 1, Text: "x", Priority: tasks.PriorityHigh}, "Alice")
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestExportTask(t *testing.T) {
	var input map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GraphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		input, _ = req.Variables["input"].(map[string]interface{})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"issueCreate":{"success":true,"issue":{"id":"issue-9","identifier":"ENG-9","number":9,"title":"t","url":"https://linear.app/x/issue/ENG-9"}}}}`))
	}))
	defer server.Close()

	e := NewExporter(fullConfig(), WithEndpoint(server.URL))
	task := tasks.Task{ID: 3, Text: "Clean up backlog", Priority: tasks.PriorityLow, ChannelID: 77}

	id, url, err := e.ExportTask(context.Background(), task, "Alice")
	if err != nil {
		t.Fatalf("ExportTask failed: %v", err)
	}
	if id != "issue-9" || url != "https://linear.app/x/issue/ENG-9" {
		t.Errorf("ExportTask() = (%s, %s)", id, url)
	}

	if input["stateId"] != "state-backlog" || input["projectId"] != "project-1" {
		t.Errorf("unexpected input: %v", input)
	}
	labels, _ := input["labelIds"].([]interface{})
	if len(labels) != 1 || labels[0] != "label-low" {
		t.Errorf("labelIds = %v", input["labelIds"])
	}
	if input["priority"] != float64(PriorityLow) {
		t.Errorf("priority = %v, want %d", input["priority"], PriorityLow)
	}
}

func TestExportTaskFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e := NewExporter(fullConfig(), WithEndpoint(server.URL))
	_, _, err := e.ExportTask(context.Background(), tasks.Task{ID: 1, Text: "x"}, "Alice")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("transport failure should not be reported as unavailable")
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestNativePriority(t *testing.T) {
	if NativePriority(tasks.PriorityUrgent) != PriorityUrgent || NativePriority("garbage") != PriorityMedium {
		t.Error("unexpected native priority mapping")
	}
}
