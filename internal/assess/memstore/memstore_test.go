package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
)

func TestStore_PutAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	r := &assess.Record{
		ID: "s-1",
		Fields: map[assess.FieldID]assess.FieldValue{
			assess.FieldStrokeFace: {Value: assess.AnswerYes},
		},
	}
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.ID != "s-1" {
		t.Errorf("ID = %q, want %q", got.ID, "s-1")
	}
	if got.Fields[assess.FieldStrokeFace].Value != assess.AnswerYes {
		t.Errorf("face = %q, want Yes", got.Fields[assess.FieldStrokeFace].Value)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &assess.Record{
		ID: "s-copy",
		Fields: map[assess.FieldID]assess.FieldValue{
			assess.FieldFlagPain: {Value: assess.AnswerNo},
		},
	})

	got, _, _ := s.Get(ctx, "s-copy")
	got.Fields[assess.FieldFlagPain] = assess.FieldValue{Value: assess.AnswerYes}

	again, _, _ := s.Get(ctx, "s-copy")
	if again.Fields[assess.FieldFlagPain].Value != assess.AnswerNo {
		t.Error("mutating a returned record leaked into the store")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &assess.Record{ID: "s-3", Fields: map[assess.FieldID]assess.FieldValue{}})
	_ = s.Put(ctx, &assess.Record{
		ID: "s-3",
		Fields: map[assess.FieldID]assess.FieldValue{
			assess.FieldAVPULevel: {Value: assess.AVPUAlert},
		},
	})

	got, ok, err := s.Get(ctx, "s-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.Fields[assess.FieldAVPULevel].Value != assess.AVPUAlert {
		t.Errorf("avpu = %q, want Alert", got.Fields[assess.FieldAVPULevel].Value)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &assess.Record{ID: "s-del", Fields: map[assess.FieldID]assess.FieldValue{}})

	if err := s.Delete(ctx, "s-del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "s-del"); ok {
		t.Fatal("expected record to be gone after Delete")
	}

	// Deleting a missing ID is a no-op.
	if err := s.Delete(ctx, "s-del"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	for i := range n {
		id := fmt.Sprintf("id-%d", i)

		go func() {
			defer wg.Done()
			_ = s.Put(ctx, &assess.Record{ID: id, Fields: map[assess.FieldID]assess.FieldValue{}})
		}()

		go func() {
			defer wg.Done()
			_, _, _ = s.Get(ctx, id)
		}()
	}

	wg.Wait()
}
