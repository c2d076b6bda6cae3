package utils

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestNewSessionID(t *testing.T) {
	id1 := NewSessionID()
	id2 := NewSessionID()

	if id1 == "" {
		t.Fatal("NewSessionID returned empty string")
	}
	if id1 == id2 {
		t.Error("NewSessionID should return unique IDs")
	}

	parsed, err := uuid.Parse(id1)
	if err != nil {
		t.Fatalf("NewSessionID returned invalid uuid %q: %v", id1, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("expected version 7 uuid, got %d", parsed.Version())
	}
}

func TestNewSessionIDOrdered(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = NewSessionID()
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("session IDs should sort in creation order")
	}
}

func TestNewSessionIDConcurrent(t *testing.T) {
	const n = 200
	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewSessionID()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate session ID %s", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
}

func TestIsSessionID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{NewSessionID(), true},
		{"", false},
		{"run-20240101-abcd", false},
		{"0190a6d2-7f1e-7c3b-9d2a-1234567890ab", true},
		{"{0190a6d2-7f1e-7c3b-9d2a-1234567890ab}", false},
	}
	for _, tt := range tests {
		if got := IsSessionID(tt.in); got != tt.want {
			t.Errorf("IsSessionID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
