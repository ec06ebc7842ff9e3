package models

import "testing"

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"in", DirectionIn, false},
		{"OUT", DirectionOut, false},
		{" In ", DirectionIn, false},
		{"lunch", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestOpposite(t *testing.T) {
	if DirectionIn.Opposite() != DirectionOut || DirectionOut.Opposite() != DirectionIn {
		t.Fatal("Opposite does not alternate")
	}
}

func TestEmployeeClone(t *testing.T) {
	e := &Employee{Name: "Alice", Descriptor: []float32{1, 2}}
	c := e.Clone()
	c.Descriptor[0] = 9
	if e.Descriptor[0] != 1 {
		t.Fatal("Clone shares the descriptor slice")
	}
}
