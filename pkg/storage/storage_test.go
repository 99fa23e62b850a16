package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleConversations() []Conversation {
	first := time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC)
	return []Conversation{
		{
			Key:      "+15551234567",
			Action:   "Text",
			FirstAt:  first,
			LastAt:   first.Add(48 * time.Hour),
			Path:     "+15551234567/2021-06-01T10_00_00Z +15551234567.html",
			FileSize: 1200, MediaCount: 1, MediaSize: 300, MergedCount: 2,
			Participants: []Participant{{PhoneNumber: "+15551234567", Name: "Alice", MatchedNumber: "+15551234567", MatchLength: 12}},
		},
		{
			Key:     "+15551111111,+15552222222",
			Action:  "Group Conversation",
			Group:   true,
			FirstAt: first,
			LastAt:  first,
			Path:    "+15551111111,+15552222222/2021-06-01T10_00_00Z +15551111111,+15552222222.html",
			Participants: []Participant{
				{PhoneNumber: "+15551111111"},
				{PhoneNumber: "+15552222222", Name: "Bob", MatchedNumber: "5552222222", MatchLength: 10},
			},
		},
	}
}

func TestUpsertAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	changes, err := db.UpsertConversations(ctx, sampleConversations())
	if err != nil {
		t.Fatalf("UpsertConversations: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	for _, c := range changes {
		if c.ChangeType != ChangeAdded {
			t.Fatalf("expected %s, got %s for %s", ChangeAdded, c.ChangeType, c.Key)
		}
	}

	got, err := db.ListConversations(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(got))
	}
	// Ordered by key: "+155511..." sorts before "+155512...".
	group, text := got[0], got[1]
	if !group.Group || len(group.Participants) != 2 || group.Participants[1].Name != "Bob" {
		t.Fatalf("unexpected group conversation %+v", group)
	}
	if text.Key != "+15551234567" || text.MediaCount != 1 || text.MergedCount != 2 {
		t.Fatalf("unexpected text conversation %+v", text)
	}
	if !text.LastAt.Equal(time.Date(2021, 6, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last date %s", text.LastAt)
	}
	if len(text.Participants) != 1 || text.Participants[0].MatchLength != 12 {
		t.Fatalf("unexpected participants %+v", text.Participants)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertConversations(ctx, sampleConversations()); err != nil {
		t.Fatalf("UpsertConversations: %v", err)
	}

	updated := sampleConversations()[:1]
	updated[0].Participants[0].Name = "Alice Smith"
	changes, err := db.UpsertConversations(ctx, updated)
	if err != nil {
		t.Fatalf("UpsertConversations: %v", err)
	}
	if len(changes) != 1 || changes[0].ChangeType != ChangeUpdated {
		t.Fatalf("unexpected changes %+v", changes)
	}

	got, err := db.ListConversations(ctx, ListOptions{PhoneNumber: "1234567"})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(got) != 1 || len(got[0].Participants) != 1 || got[0].Participants[0].Name != "Alice Smith" {
		t.Fatalf("unexpected conversations %+v", got)
	}
}

func TestListFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.UpsertConversations(ctx, sampleConversations()); err != nil {
		t.Fatalf("UpsertConversations: %v", err)
	}

	tests := []struct {
		opts ListOptions
		want int
	}{
		{ListOptions{Action: "Text"}, 1},
		{ListOptions{Action: "Voicemail"}, 0},
		{ListOptions{PhoneNumber: "2222222"}, 1},
		{ListOptions{Since: time.Date(2021, 6, 2, 0, 0, 0, 0, time.UTC)}, 1},
	}
	for _, tt := range tests {
		got, err := db.ListConversations(ctx, tt.opts)
		if err != nil {
			t.Fatalf("ListConversations(%+v): %v", tt.opts, err)
		}
		if len(got) != tt.want {
			t.Fatalf("ListConversations(%+v) returned %d, want %d", tt.opts, len(got), tt.want)
		}
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := db.UpsertConversations(ctx, sampleConversations()); err != nil {
		t.Fatalf("UpsertConversations: %v", err)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(stats))
	}
	// Ordered by action: "Group Conversation" before "Text".
	if stats[0].Action != "Group Conversation" || stats[0].Participants != 2 {
		t.Fatalf("unexpected group stats %+v", stats[0])
	}
	if stats[1].Conversations != 1 || stats[1].MediaCount != 1 || stats[1].Bytes != 1500 {
		t.Fatalf("unexpected text stats %+v", stats[1])
	}
}

func TestUpsertRejectsEmptyKey(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.UpsertConversations(context.Background(), []Conversation{{Action: "Text"}}); err == nil {
		t.Fatalf("expected an error for a conversation without a key")
	}
}
