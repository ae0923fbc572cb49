package registry

import (
	"errors"
	"testing"

	"atlas-gw/atlas/pkg/config"
)

func testEndpoint(name, clientType string) *Endpoint {
	return &Endpoint{
		Name:        name,
		ClientType:  clientType,
		APIUrl:      "https://" + name + ".example.com",
		APIKey:      "sk-" + name,
		Transformer: "anthropic",
		Enabled:     true,
		Priority:    100,
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	r := New(nil)

	if err := r.Add(testEndpoint("a", ClientClaude)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	ep, err := r.Get(ClientClaude, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ep.Name != "a" || ep.ClientType != ClientClaude {
		t.Errorf("Get() = %s/%s, want claude/a", ep.ClientType, ep.Name)
	}
	if ep.AddedAt.IsZero() {
		t.Error("AddedAt should be stamped on Add")
	}
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r := New(nil)
	if err := r.Add(testEndpoint("a", ClientClaude)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	err := r.Add(testEndpoint("a", ClientClaude))
	if !errors.Is(err, ErrEndpointExists) {
		t.Errorf("Add() error = %v, want ErrEndpointExists", err)
	}

	// Same name is fine under a different client type.
	if err := r.Add(testEndpoint("a", ClientGemini)); err != nil {
		t.Errorf("Add() under other client type error = %v", err)
	}
}

func TestRegistry_AddUnknownClientType(t *testing.T) {
	r := New(nil)
	if err := r.Add(testEndpoint("a", "cohere")); !errors.Is(err, ErrUnknownClientType) {
		t.Errorf("Add() error = %v, want ErrUnknownClientType", err)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := New(nil)

	_, err := r.Get(ClientClaude, "missing")
	if !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("Get() error = %v, want ErrEndpointNotFound", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatal("Get() error should be a *NotFoundError")
	}
	if nf.Name != "missing" {
		t.Errorf("NotFoundError.Name = %q, want missing", nf.Name)
	}
}

func TestRegistry_RemovePreservesOrder(t *testing.T) {
	r := New(nil)
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Add(testEndpoint(name, ClientCodex)); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	if err := r.Remove(ClientCodex, "b"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	got := r.List(ClientCodex)
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Errorf("List() after remove = %v, want [a c]", names(got))
	}
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := New(nil)
	if err := r.Add(testEndpoint("a", ClientClaude)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := r.SetEnabled(ClientClaude, "a", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if got := r.ListEnabled(ClientClaude); len(got) != 0 {
		t.Errorf("ListEnabled() = %v, want empty", names(got))
	}

	if err := r.SetEnabled(ClientClaude, "a", true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if got := r.ListEnabled(ClientClaude); len(got) != 1 {
		t.Errorf("ListEnabled() = %v, want [a]", names(got))
	}
}

func TestRegistry_Reorder(t *testing.T) {
	r := New(nil)
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Add(testEndpoint(name, ClientClaude)); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	if err := r.Reorder(ClientClaude, []string{"c", "a", "b"}); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}

	got := names(r.List(ClientClaude))
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List() after reorder = %v, want %v", got, want)
		}
	}
}

func TestRegistry_ReorderRejectsBadLists(t *testing.T) {
	r := New(nil)
	for _, name := range []string{"a", "b"} {
		if err := r.Add(testEndpoint(name, ClientClaude)); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	tests := []struct {
		name  string
		order []string
	}{
		{"too short", []string{"a"}},
		{"unknown name", []string{"a", "x"}},
		{"duplicate name", []string{"a", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Reorder(ClientClaude, tt.order); err == nil {
				t.Error("Reorder() expected error, got nil")
			}
		})
	}
}

func TestRegistry_ListReturnsCopies(t *testing.T) {
	r := New(nil)
	if err := r.Add(testEndpoint("a", ClientClaude)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got := r.List(ClientClaude)
	got[0].Enabled = false
	got[0].Name = "mutated"

	ep, err := r.Get(ClientClaude, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ep.Enabled {
		t.Error("mutating a listed copy should not affect the registry")
	}
}

func TestEndpoint_MatchesModel(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		model    string
		want     bool
	}{
		{"no patterns matches all", nil, "claude-sonnet-4", true},
		{"glob match", []string{"claude-*"}, "claude-sonnet-4", true},
		{"glob miss", []string{"claude-*"}, "gpt-4o", false},
		{"exact match", []string{"gpt-4o"}, "gpt-4o", true},
		{"second pattern matches", []string{"gpt-3*", "gpt-4*"}, "gpt-4o", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := &Endpoint{ModelPatterns: tt.patterns}
			if got := ep.MatchesModel(tt.model); got != tt.want {
				t.Errorf("MatchesModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestRegistry_NewFromConfig(t *testing.T) {
	disabled := false
	cfgs := []config.EndpointConfig{
		{Name: "a", ClientType: "claude", APIUrl: "https://a.example.com", Transformer: "anthropic", Priority: 10},
		{Name: "b", ClientType: "claude", APIUrl: "https://b.example.com", Transformer: "anthropic", Enabled: &disabled},
		{Name: "c", ClientType: "codex", APIUrl: "https://c.example.com", Transformer: "openai"},
	}

	r, err := NewFromConfig(cfgs, nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if got := names(r.List(ClientClaude)); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("claude order = %v, want [a b]", got)
	}
	if got := r.ListEnabled(ClientClaude); len(got) != 1 || got[0].Name != "a" {
		t.Errorf("ListEnabled(claude) = %v, want [a]", names(got))
	}
}

func TestRegistry_ReplaceFromConfig(t *testing.T) {
	r := New(nil)
	if err := r.Add(testEndpoint("a", ClientClaude)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	before, _ := r.Get(ClientClaude, "a")

	cfgs := []config.EndpointConfig{
		{Name: "a", ClientType: "claude", APIUrl: "https://new.example.com", Transformer: "anthropic"},
		{Name: "z", ClientType: "gemini", APIUrl: "https://z.example.com", Transformer: "gemini"},
	}
	if err := r.ReplaceFromConfig(cfgs); err != nil {
		t.Fatalf("ReplaceFromConfig() error = %v", err)
	}

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	after, err := r.Get(ClientClaude, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if after.APIUrl != "https://new.example.com" {
		t.Errorf("APIUrl = %q, want replaced URL", after.APIUrl)
	}
	if !after.AddedAt.Equal(before.AddedAt) {
		t.Error("AddedAt should survive reload for a surviving endpoint")
	}
}

func names(eps []*Endpoint) []string {
	out := make([]string, len(eps))
	for i, ep := range eps {
		out[i] = ep.Name
	}
	return out
}
