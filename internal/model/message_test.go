package model_test

import (
	"encoding/json"
	"testing"

	"algojudge/internal/model"
	"algojudge/internal/sandbox/verdict"
)

func validMessage() model.JudgeMessage {
	return model.JudgeMessage{
		SubmissionID:  42,
		ProblemID:     7,
		Username:      "alice",
		SourceCode:    "print(1)",
		Language:      "PYTHON",
		TimeLimitSec:  1,
		MemoryLimitMb: 128,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	msg := validMessage()
	if err := msg.Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}

	mutations := []struct {
		name   string
		mutate func(*model.JudgeMessage)
	}{
		{"zero submission id", func(m *model.JudgeMessage) { m.SubmissionID = 0 }},
		{"negative problem id", func(m *model.JudgeMessage) { m.ProblemID = -1 }},
		{"empty username", func(m *model.JudgeMessage) { m.Username = "" }},
		{"blank source", func(m *model.JudgeMessage) { m.SourceCode = "   \n" }},
		{"empty language", func(m *model.JudgeMessage) { m.Language = "" }},
		{"zero time limit", func(m *model.JudgeMessage) { m.TimeLimitSec = 0 }},
		{"zero memory limit", func(m *model.JudgeMessage) { m.MemoryLimitMb = 0 }},
	}
	for _, tc := range mutations {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			broken := validMessage()
			tc.mutate(&broken)
			if err := broken.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIngressFieldNames(t *testing.T) {
	t.Parallel()

	raw := `{"submissionId":42,"problemId":7,"username":"alice","sourceCode":"print(1)","language":"PYTHON","timeLimitSec":1,"memoryLimitMb":128}`
	var msg model.JudgeMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg != validMessage() {
		t.Fatalf("unexpected decode result: %+v", msg)
	}
}

func TestResultMessageMaxima(t *testing.T) {
	t.Parallel()

	msg := validMessage()
	accepted := model.NewResultMessage(&msg, verdict.Accepted, verdict.Maxima{RuntimeMs: 120, MemoryKB: 2048})
	if accepted.RuntimeMs == nil || *accepted.RuntimeMs != 120 {
		t.Fatalf("expected runtime 120, got %v", accepted.RuntimeMs)
	}
	if accepted.MemoryKb == nil || *accepted.MemoryKb != 2048 {
		t.Fatalf("expected memory 2048, got %v", accepted.MemoryKb)
	}

	rejected := model.NewResultMessage(&msg, verdict.WrongAnswer, verdict.Maxima{RuntimeMs: 120, MemoryKB: 2048})
	if rejected.RuntimeMs != nil || rejected.MemoryKb != nil {
		t.Fatal("non-accepted result must carry null maxima")
	}

	// The wire format nulls out the absent maxima.
	data, err := json.Marshal(rejected)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["runtimeMs"] != nil || decoded["memoryKb"] != nil {
		t.Fatalf("expected null maxima on the wire, got %v", decoded)
	}
}
