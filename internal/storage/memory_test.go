package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/models"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := &models.Employee{Name: "Alice", Email: "a@example.com", Descriptor: []float32{1, 2}}
	if err := s.Enroll(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Descriptor[0] = 42

	got, _ := s.Get(ctx, e.ID)
	if got.Descriptor[0] != 1 {
		t.Fatal("store aliases the caller's descriptor")
	}
	got.Descriptor[1] = 42
	again, _ := s.Get(ctx, e.ID)
	if again.Descriptor[1] != 2 {
		t.Fatal("Get exposes internal state")
	}
}

func TestMemoryPhotos(t *testing.T) {
	p := NewMemoryPhotos()
	ctx := context.Background()
	key := "employees/" + uuid.NewString() + ".jpg"

	if err := p.PutPhoto(ctx, key, []byte{1, 2, 3}, "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	data, ct, err := p.GetPhoto(ctx, key)
	if err != nil || ct != "image/jpeg" || len(data) != 3 {
		t.Fatalf("GetPhoto = %v, %q, %v", data, ct, err)
	}
	if err := p.DeletePhoto(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.GetPhoto(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("after delete: err = %v", err)
	}
}
