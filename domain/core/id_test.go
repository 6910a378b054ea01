package core

import (
	"testing"
)

// TestNewCallIDUniqueness tests that NewCallID generates unique identifiers
func TestNewCallIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[CallID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewCallID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestCallIDShort tests the log-friendly suffix
func TestCallIDShort(t *testing.T) {
	id := CallID("0192f0c4-7a1b-7c3d-9e8f-0123456789ab")
	if id.Short() != "456789ab" {
		t.Errorf("Expected Short() to return '456789ab', got '%s'", id.Short())
	}

	short := CallID("abc")
	if short.Short() != "abc" {
		t.Errorf("Expected Short() to return 'abc', got '%s'", short.Short())
	}
}

// TestCallIDIsEmpty tests ID emptiness check
func TestCallIDIsEmpty(t *testing.T) {
	if !CallID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if CallID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}
