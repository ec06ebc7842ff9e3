package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/models"
)

// testStore runs the behaviour every Store backend must share.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	alice := &models.Employee{Name: "Alice", Email: "alice@example.com", Phone: "1", Department: "R&D",
		Descriptor: []float32{0.1, 0.2, 0.3}, PhotoKey: "employees/alice.jpg"}
	if err := s.Enroll(ctx, alice); err != nil {
		t.Fatalf("Enroll alice: %v", err)
	}
	if alice.ID == uuid.Nil || alice.CreatedAt.IsZero() {
		t.Fatalf("Enroll did not assign id/timestamps: %+v", alice)
	}

	t.Run("duplicate email", func(t *testing.T) {
		dup := &models.Employee{Name: "Other", Email: "ALICE@example.com", Descriptor: []float32{1, 1, 1}}
		if err := s.Enroll(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("err = %v, want ErrDuplicateEmail", err)
		}
	})

	bob := &models.Employee{Name: "Bob", Email: "bob@example.com", Descriptor: []float32{0.9, 0.8, 0.7}}
	if err := s.Enroll(ctx, bob); err != nil {
		t.Fatalf("Enroll bob: %v", err)
	}

	t.Run("get", func(t *testing.T) {
		got, err := s.Get(ctx, alice.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "Alice" || got.Department != "R&D" || len(got.Descriptor) != 3 || got.Descriptor[2] != 0.3 {
			t.Errorf("got %+v", got)
		}
		if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing: err = %v", err)
		}
	})

	t.Run("list omits descriptors", func(t *testing.T) {
		list, err := s.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 {
			t.Fatalf("len = %d", len(list))
		}
		for _, e := range list {
			if e.Descriptor != nil {
				t.Errorf("%s listed with descriptor", e.Name)
			}
		}
	})

	t.Run("gallery", func(t *testing.T) {
		g, err := s.Gallery(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(g) != 2 {
			t.Fatalf("len = %d", len(g))
		}
		for _, c := range g {
			if len(c.Descriptor) != 3 || c.Name == "" {
				t.Errorf("candidate %+v", c)
			}
		}
	})

	t.Run("replace descriptor", func(t *testing.T) {
		if err := s.ReplaceDescriptor(ctx, bob.ID, []float32{5, 5, 5}, "employees/bob-2.jpg"); err != nil {
			t.Fatal(err)
		}
		got, _ := s.Get(ctx, bob.ID)
		if got.Descriptor[0] != 5 || got.PhotoKey != "employees/bob-2.jpg" {
			t.Errorf("got %+v", got)
		}
		if err := s.ReplaceDescriptor(ctx, uuid.New(), []float32{1, 2, 3}, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing: err = %v", err)
		}
	})

	t.Run("attendance compare and swap", func(t *testing.T) {
		last, err := s.LastAttendance(ctx, alice.ID)
		if err != nil || last != nil {
			t.Fatalf("fresh identity: last = %v, err = %v", last, err)
		}

		in := &models.AttendanceEvent{EmployeeID: alice.ID, EmployeeName: "Alice",
			Direction: models.DirectionIn, Source: models.SourceRecognition}
		if err := s.AppendAttendance(ctx, in, nil); err != nil {
			t.Fatal(err)
		}

		stale := &models.AttendanceEvent{EmployeeID: alice.ID, EmployeeName: "Alice",
			Direction: models.DirectionIn, Source: models.SourceRecognition}
		if err := s.AppendAttendance(ctx, stale, nil); !errors.Is(err, ErrConflict) {
			t.Fatalf("stale append: err = %v, want ErrConflict", err)
		}

		out := &models.AttendanceEvent{EmployeeID: alice.ID, EmployeeName: "Alice",
			Direction: models.DirectionOut, Source: models.SourceManual}
		if err := s.AppendAttendance(ctx, out, &in.ID); err != nil {
			t.Fatal(err)
		}

		last, err = s.LastAttendance(ctx, alice.ID)
		if err != nil || last == nil || last.ID != out.ID || last.Direction != models.DirectionOut {
			t.Fatalf("last = %+v, err = %v", last, err)
		}

		history, err := s.ListAttendance(ctx, alice.ID, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 || history[0].ID != out.ID || history[1].ID != in.ID {
			t.Fatalf("history not newest first: %+v", history)
		}
		limited, _ := s.ListAttendance(ctx, alice.ID, 1)
		if len(limited) != 1 || limited[0].ID != out.ID {
			t.Fatalf("limited = %+v", limited)
		}
		none, err := s.ListAttendance(ctx, bob.ID, 10)
		if err != nil || len(none) != 0 {
			t.Fatalf("bob history = %v, %v", none, err)
		}
	})

	t.Run("attendance for unknown employee", func(t *testing.T) {
		ev := &models.AttendanceEvent{EmployeeID: uuid.New(), Direction: models.DirectionIn, Source: models.SourceManual}
		if err := s.AppendAttendance(ctx, ev, nil); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent appends with the same predecessor", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ev := &models.AttendanceEvent{EmployeeID: bob.ID, EmployeeName: "Bob",
					Direction: models.DirectionIn, Source: models.SourceRecognition}
				errs[i] = s.AppendAttendance(ctx, ev, nil)
			}()
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case !errors.Is(err, ErrConflict):
				t.Errorf("unexpected error: %v", err)
			}
		}
		if ok != 1 {
			t.Fatalf("%d appends succeeded, want exactly 1", ok)
		}
	})

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
