package session

import (
	"testing"
	"time"
)

func TestProcessMessage_IdempotentByMessageID(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	start := time.Now()

	m.ProcessMessage("u1", "c1", "msg-1", "hello there", start)
	s := m.ProcessMessage("u1", "c1", "msg-1", "hello there", start.Add(time.Minute))

	if s.CurrentTopic.MessageCount != 1 {
		t.Errorf("ProcessMessage() re-delivery bumped MessageCount to %d, want 1", s.CurrentTopic.MessageCount)
	}
	if !s.LastActivity.Equal(start) {
		t.Errorf("ProcessMessage() re-delivery updated LastActivity to %v, want unchanged %v", s.LastActivity, start)
	}
}

func TestProcessMessage_InactivityTriggersPauseThenActive(t *testing.T) {
	m := NewManager(30*time.Minute, 100, nil)
	start := time.Now()
	m.ProcessMessage("u1", "c1", "msg-1", "hey", start)

	s := m.ProcessMessage("u1", "c1", "msg-2", "hey again", start.Add(45*time.Minute))
	if s.State != StateActive {
		t.Errorf("ProcessMessage() after long gap State = %q, want %q (re-activated after pause check)", s.State, StateActive)
	}
}

func TestProcessMessage_ExplicitChangeStartsNewTopic(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	start := time.Now()
	m.ProcessMessage("u1", "c1", "msg-1", "talking about breakfast foods", start)
	firstTopicID := m.sessions[key("u1", "c1")].CurrentTopic.ID

	s := m.ProcessMessage("u1", "c1", "msg-2", "by the way, did you see the game last night", start.Add(time.Minute))
	if s.CurrentTopic.ID == firstTopicID {
		t.Error("ProcessMessage() explicit-change cue did not start a new topic")
	}
}

func TestProcessMessage_ResumptionCueStartsNewTopic(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	start := time.Now()
	m.ProcessMessage("u1", "c1", "msg-1", "discussing the weekend trip", start)
	firstTopicID := m.sessions[key("u1", "c1")].CurrentTopic.ID

	s := m.ProcessMessage("u1", "c1", "msg-2", "going back to what we said earlier", start.Add(time.Minute))
	if s.CurrentTopic.ID == firstTopicID {
		t.Error("ProcessMessage() resumption cue did not start a new topic")
	}
}

func TestProcessMessage_OrdinaryMessageIncrementsCurrentTopic(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	start := time.Now()
	m.ProcessMessage("u1", "c1", "msg-1", "talking about music", start)
	s := m.ProcessMessage("u1", "c1", "msg-2", "yeah I really like that album", start.Add(time.Minute))

	if s.CurrentTopic.MessageCount != 2 {
		t.Errorf("ProcessMessage() MessageCount = %d, want 2", s.CurrentTopic.MessageCount)
	}
}

func TestProcessMessage_SummarizationThresholdInvokesCustomFunc(t *testing.T) {
	called := false
	summarize := func(s *Session) string {
		called = true
		return "custom summary"
	}
	m := NewManager(time.Hour, 2, summarize)
	start := time.Now()
	m.ProcessMessage("u1", "c1", "msg-1", "talking about music", start)
	s := m.ProcessMessage("u1", "c1", "msg-2", "more music talk", start.Add(time.Minute))

	if !called {
		t.Error("ProcessMessage() did not invoke the custom summarize function at threshold")
	}
	if s.ContextSummary != "custom summary" {
		t.Errorf("ProcessMessage() ContextSummary = %q, want %q", s.ContextSummary, "custom summary")
	}
}

func TestProcessMessage_SummarizationThresholdFallsBackToDigest(t *testing.T) {
	m := NewManager(time.Hour, 2, nil)
	start := time.Now()
	m.ProcessMessage("u1", "c1", "msg-1", "talking about vacation plans", start)
	s := m.ProcessMessage("u1", "c1", "msg-2", "more vacation talk", start.Add(time.Minute))

	if s.ContextSummary == "" {
		t.Error("ProcessMessage() did not produce a fallback digest summary at threshold")
	}
}

func TestHandleInterruption_MarksTopicAndSessionInterrupted(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	m.ProcessMessage("u1", "c1", "msg-1", "hello", time.Now())

	s := m.HandleInterruption("u1", "c1", "u2")
	if s.State != StateInterrupted {
		t.Errorf("HandleInterruption() State = %q, want %q", s.State, StateInterrupted)
	}
	if s.CurrentTopic.ResolutionStatus != ResolutionInterrupted {
		t.Errorf("HandleInterruption() ResolutionStatus = %q, want %q", s.CurrentTopic.ResolutionStatus, ResolutionInterrupted)
	}
}

func TestHandleInterruption_UnknownSessionReturnsNil(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	if s := m.HandleInterruption("ghost", "c1", "u2"); s != nil {
		t.Errorf("HandleInterruption() for unknown session = %+v, want nil", s)
	}
}

func TestResume_ProducesBridgeAndTransitionsState(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	m.ProcessMessage("u1", "c1", "msg-1", "let's talk about hiking trails nearby", time.Now())
	m.HandleInterruption("u1", "c1", "u2")

	bridge, s := m.Resume("u1", "c1", "ok I'm back")
	if bridge == "" {
		t.Error("Resume() produced an empty bridge for a topic with keywords")
	}
	if s.State != StateResumed {
		t.Errorf("Resume() State = %q, want %q", s.State, StateResumed)
	}
}

func TestResume_NoOpWhenSessionActive(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	m.ProcessMessage("u1", "c1", "msg-1", "hello", time.Now())

	bridge, s := m.Resume("u1", "c1", "anything")
	if bridge != "" {
		t.Errorf("Resume() on an active session = %q, want empty bridge", bridge)
	}
	if s.State != StateActive {
		t.Errorf("Resume() on an active session changed State to %q", s.State)
	}
}

func TestEnd_FinalizesTopicAndRemovesSession(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	m.ProcessMessage("u1", "c1", "msg-1", "discussing hiking boots and trail maps", time.Now())

	summary := m.End("u1", "c1", "user left")
	if summary == "" {
		t.Error("End() produced an empty summary for a topic with keywords")
	}
	if _, ok := m.sessions[key("u1", "c1")]; ok {
		t.Error("End() did not remove the session from the active set")
	}
}

func TestEnd_UnknownSessionReturnsEmptyString(t *testing.T) {
	m := NewManager(time.Hour, 100, nil)
	if got := m.End("ghost", "c1", "reason"); got != "" {
		t.Errorf("End() for unknown session = %q, want empty string", got)
	}
}

func TestClassifyTransition(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"by the way, what time is it", transitionExplicitChange},
		{"anyway, let's move on", transitionExplicitChange},
		{"going back to the earlier point", transitionResumption},
		{"as I was saying before", transitionResumption},
		{"thanks, that makes sense", transitionCompletion},
		{"just a regular message", transitionCompletion},
	}
	for _, tt := range tests {
		if got := classifyTransition(tt.text); got != tt.want {
			t.Errorf("classifyTransition(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractKeywords_FiltersStopwordsAndShortTokensAndDedupes(t *testing.T) {
	got := extractKeywords("the cat and the cat sat on a mat today today", 10)

	for _, w := range got {
		if len(w) < 4 {
			t.Errorf("extractKeywords() returned a short token: %q", w)
		}
		if stopWords[w] {
			t.Errorf("extractKeywords() returned a stopword: %q", w)
		}
	}

	seen := map[string]int{}
	for _, w := range got {
		seen[w]++
	}
	for w, count := range seen {
		if count > 1 {
			t.Errorf("extractKeywords() returned duplicate %q", w)
		}
	}
}

func TestExtractKeywords_RespectsCap(t *testing.T) {
	got := extractKeywords("alpha bravo charlie delta echo foxtrot golf hotel", 3)
	if len(got) > 3 {
		t.Errorf("extractKeywords() len = %d, want <= 3", len(got))
	}
}

func TestHumanizeElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "a moment"},
		{1 * time.Minute, "1 minute"},
		{5 * time.Minute, "5 minutes"},
		{1 * time.Hour, "1 hour"},
		{3 * time.Hour, "3 hours"},
		{25 * time.Hour, "1 day"},
	}
	for _, tt := range tests {
		if got := humanizeElapsed(tt.d); got != tt.want {
			t.Errorf("humanizeElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestPluralize(t *testing.T) {
	if got := pluralize(1, "minute"); got != "1 minute" {
		t.Errorf("pluralize(1, minute) = %q, want %q", got, "1 minute")
	}
	if got := pluralize(2, "minute"); got != "2 minutes" {
		t.Errorf("pluralize(2, minute) = %q, want %q", got, "2 minutes")
	}
}
