package agent

import (
	"context"
	"strings"
	"testing"
	"time"
)

// blockingGenerator simulates a wedged model backend: it never returns
// until its context expires.
type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			raw:  `{"type": "balance", "message": "hi"}`,
			want: `{"type": "balance", "message": "hi"}`,
		},
		{
			name: "json code fence",
			raw:  "```json\n{\"type\": \"help\"}\n```",
			want: `{"type": "help"}`,
		},
		{
			name: "plain code fence",
			raw:  "```\n{\"type\": \"help\"}\n```",
			want: `{"type": "help"}`,
		},
		{
			name: "leading commentary",
			raw:  "Here is the response you asked for:\n{\"type\": \"insight\"}",
			want: `{"type": "insight"}`,
		},
		{
			name: "trailing commentary",
			raw:  "{\"type\": \"insight\"}\nLet me know if you need anything else!",
			want: `{"type": "insight"}`,
		},
		{
			name: "nested objects",
			raw:  `{"type": "transaction", "transaction": {"amount": 5}}`,
			want: `{"type": "transaction", "transaction": {"amount": 5}}`,
		},
		{
			name: "braces inside strings",
			raw:  `{"message": "use {curly} braces"}`,
			want: `{"message": "use {curly} braces"}`,
		},
		{
			name: "escaped quotes inside strings",
			raw:  `{"message": "she said \"hi\" to me"}`,
			want: `{"message": "she said \"hi\" to me"}`,
		},
		{
			name:    "no object at all",
			raw:     "I am unable to answer that.",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			raw:     `{"type": "balance"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractJSONObject() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("extractJSONObject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRespondWithModel_ValidResponse(t *testing.T) {
	store := newMockStore()
	gen := &fakeGenerator{output: `{
		"type": "insight",
		"message": "Your food spending is trending up.",
		"requires_clarification": false
	}`}

	a := newTestAgent(store, gen)

	resp := a.respondWithModel(context.Background(), "how's my food spending?", &Context{})
	if resp.Type != ResponseInsight {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseInsight)
	}
	if resp.Message != "Your food spending is trending up." {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestRespondWithModel_FenceWrappedResponse(t *testing.T) {
	store := newMockStore()
	gen := &fakeGenerator{output: "```json\n{\"type\": \"help\", \"message\": \"Ask me anything.\", \"requires_clarification\": false}\n```"}

	a := newTestAgent(store, gen)

	resp := a.respondWithModel(context.Background(), "hello", &Context{})
	if resp.Type != ResponseHelp {
		t.Errorf("Type = %q, want %q", resp.Type, ResponseHelp)
	}
}

func TestRespondWithModel_FallbackPaths(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{
			name: "model error",
			gen:  &fakeGenerator{err: context.DeadlineExceeded},
		},
		{
			name: "no json in output",
			gen:  &fakeGenerator{output: "Sorry, I can't help with that."},
		},
		{
			name: "invalid json",
			gen:  &fakeGenerator{output: `{"type": "balance", "message": }`},
		},
		{
			name: "schema violation",
			gen:  &fakeGenerator{output: `{"type": "nonsense", "message": "hi"}`},
		},
		{
			name: "missing message",
			gen:  &fakeGenerator{output: `{"type": "balance"}`},
		},
		{
			name: "transaction payload on wrong type",
			gen:  &fakeGenerator{output: `{"type": "balance", "message": "hi", "transaction": {"description": "x", "amount": 5, "category": "food", "type": "expense", "date": "2024-01-01"}}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(newMockStore(), tt.gen)

			resp := a.respondWithModel(context.Background(), "anything", &Context{})
			if resp.Type != ResponseQuestion {
				t.Errorf("Type = %q, want fallback %q", resp.Type, ResponseQuestion)
			}
			if !resp.RequiresClarification {
				t.Error("fallback should require clarification")
			}
			if !strings.Contains(resp.Message, "rephrase") {
				t.Errorf("unexpected fallback message: %q", resp.Message)
			}
		})
	}
}

func TestRespondWithModel_BoundsModelCall(t *testing.T) {
	orig := modelCallTimeout
	modelCallTimeout = 25 * time.Millisecond
	t.Cleanup(func() { modelCallTimeout = orig })

	a := newTestAgent(newMockStore(), blockingGenerator{})

	start := time.Now()
	resp := a.respondWithModel(context.Background(), "anything", &Context{})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("model call was not bounded, returned after %v", elapsed)
	}

	if resp.Type != ResponseQuestion {
		t.Errorf("Type = %q, want fallback %q", resp.Type, ResponseQuestion)
	}
	if !resp.RequiresClarification {
		t.Error("fallback should require clarification")
	}
	if !strings.Contains(resp.Message, "rephrase") {
		t.Errorf("unexpected fallback message: %q", resp.Message)
	}
}

func TestRespondWithModel_PersistsStringContextValues(t *testing.T) {
	store := newMockStore()
	gen := &fakeGenerator{output: `{
		"type": "suggestion",
		"message": "Noted.",
		"requires_clarification": false,
		"context": {"preferred_currency": "USD", "confidence": 0.9}
	}`}

	a := newTestAgent(store, gen)
	a.respondWithModel(context.Background(), "I always use dollars", &Context{})

	if store.prefs["preferred_currency"] != "USD" {
		t.Errorf("preferred_currency = %q, want USD", store.prefs["preferred_currency"])
	}
	if _, ok := store.prefs["confidence"]; ok {
		t.Error("non-string context value should not be persisted")
	}
}

func TestBuildPrompt(t *testing.T) {
	ac := &Context{}
	ac.Summary.CurrentBalance = 123.45

	prompt := buildPrompt("what's up", ac)

	if !strings.Contains(prompt, "Current Balance: $123.45") {
		t.Error("prompt missing balance figure")
	}
	if !strings.Contains(prompt, `"what's up"`) {
		t.Error("prompt missing user message")
	}
	if !strings.Contains(prompt, "RESPONSE FORMAT") {
		t.Error("prompt missing output instructions")
	}
}
