package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"msxfi/tensor"
)

func testModel() *ModelWeights {
	w := &ModelWeights{
		Version: "1.0",
		Layers: map[string]LayerWeight{
			"fc2": {
				Weight: &WeightData{Name: "fc2_weight", Shape: []int{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}},
			},
			"fc1": {
				Weight: &WeightData{Name: "fc1_weight", Shape: []int{3, 2}, Data: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}},
				Bias:   &WeightData{Name: "fc1_bias", Shape: []int{3}, Data: []float64{-1, 0, 1}},
			},
		},
	}
	return w
}

func TestTensorToWeightData(t *testing.T) {
	ten := tensor.New(2, 3)
	for i := range ten.Data {
		ten.Data[i] = float64(i) * 0.5
	}

	wd := TensorToWeightData("w", ten)
	ten.Data[0] = 42

	if wd.Name != "w" {
		t.Errorf("Name = %s, want w", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	if wd.Data[0] != 0 {
		t.Errorf("Data must be a copy, got Data[0] = %f", wd.Data[0])
	}

	back := WeightDataToTensor(wd)
	for i, v := range back.Data {
		if v != wd.Data[i] {
			t.Errorf("Data[%d] = %f, want %f", i, v, wd.Data[i])
		}
	}
}

func TestParameters(t *testing.T) {
	w := testModel()

	var names []string
	for name, p := range w.Parameters() {
		names = append(names, name)
		if name == "fc1.bias" {
			p.Data[0] = 7
		}
	}
	want := []string{"fc1.weight", "fc1.bias", "fc2.weight"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
	if w.Layers["fc1"].Bias.Data[0] != 7 {
		t.Error("writes through a parameter must reach the model")
	}

	// stopping early is honoured
	n := 0
	for range w.Parameters() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterated %d parameters after break", n)
	}
}

func TestSaveLoadWeights(t *testing.T) {
	weightsFile := filepath.Join(t.TempDir(), "model.json")
	if err := SaveWeights(weightsFile, testModel()); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	loaded, err := LoadWeights(weightsFile)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	if loaded.Version != "1.0" {
		t.Errorf("Version = %s, want 1.0", loaded.Version)
	}
	fc1 := loaded.Layers["fc1"]
	if fc1.Bias == nil || len(fc1.Bias.Data) != 3 || fc1.Bias.Data[2] != 1 {
		t.Errorf("fc1 bias = %+v", fc1.Bias)
	}
	if loaded.Layers["fc2"].Bias != nil {
		t.Error("fc2 has no bias")
	}
}

func TestLoadWeightsShapeMismatch(t *testing.T) {
	w := testModel()
	w.Layers["fc2"].Weight.Shape = []int{4, 4}
	path := filepath.Join(t.TempDir(), "bad_shape.json")
	if err := SaveWeights(path, w); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}
	_, err := LoadWeights(path)
	if err == nil {
		t.Fatal("Expected error for shape mismatch")
	}
	if !strings.Contains(err.Error(), "fc2.weight") || !strings.Contains(err.Error(), "needs 16 elements, got 6") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadWeightsNotFound(t *testing.T) {
	_, err := LoadWeights("/nonexistent/path/weights.json")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadWeightsInvalidJSON(t *testing.T) {
	badFile := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badFile, []byte("not valid json"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if _, err := LoadWeights(badFile); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
