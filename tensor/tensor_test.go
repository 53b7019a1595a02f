package tensor

import "testing"

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestViewSharesData(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	v, err := View(data, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	v.Set(9, 1, 0)
	if data[2] != 9 {
		t.Fatalf("write through view not visible, data=%v", data)
	}
	if _, err := View(data, 3); err == nil {
		t.Fatal("expected shape error")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := a.Clone()
	b.Data[0] = 7
	if a.Data[0] != 1 {
		t.Fatalf("clone aliases source")
	}
}

func TestDiffAndCount(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{1, 0, 3}, Shape: []int{3}}
	d, err := Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 2, 0}
	for i := range want {
		if d.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, d.Data[i], want[i])
		}
	}
	n, err := CountDiff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountDiff = %d, want 1", n)
	}
	if _, err := Diff(a, New(2, 2)); err == nil {
		t.Fatal("expected shape mismatch")
	}
}

func TestReshape(t *testing.T) {
	a := NewWithData([]float64{1, 2, 3, 4, 5, 6})
	r, err := a.Reshape(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if r.At(2, 1) != 6 {
		t.Errorf("At(2,1) = %f, want 6", r.At(2, 1))
	}
	if _, err := a.Reshape(4, 2); err == nil {
		t.Fatal("expected reshape error")
	}
}
