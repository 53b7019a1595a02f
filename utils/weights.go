package utils

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"slices"

	"msxfi/tensor"
)

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model
type ModelWeights struct {
	Version string                 `json:"version"`
	Layers  map[string]LayerWeight `json:"layers"`
}

// LayerWeight contains weights and bias for a layer
type LayerWeight struct {
	Weight *WeightData `json:"weight,omitempty"`
	Bias   *WeightData `json:"bias,omitempty"`
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file and checks every shape
// matches its data.
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	for name, t := range weights.Parameters() {
		if _, err := tensor.View(t.Data, t.Shape...); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
	}
	return &weights, nil
}

// Parameters yields "<layer>.weight" and "<layer>.bias" in layer name
// order. The tensors share memory with the weights, so writes to them
// modify the model.
func (w *ModelWeights) Parameters() iter.Seq2[string, *tensor.Tensor] {
	return func(yield func(string, *tensor.Tensor) bool) {
		names := make([]string, 0, len(w.Layers))
		for name := range w.Layers {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			layer := w.Layers[name]
			for _, p := range []struct {
				suffix string
				wd     *WeightData
			}{{"weight", layer.Weight}, {"bias", layer.Bias}} {
				if p.wd == nil {
					continue
				}
				t := &tensor.Tensor{Data: p.wd.Data, Shape: p.wd.Shape}
				if !yield(name+"."+p.suffix, t) {
					return
				}
			}
		}
	}
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: t.Shape,
		Data:  append([]float64{}, t.Data...), // copy
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) *tensor.Tensor {
	t := tensor.New(wd.Shape...)
	copy(t.Data, wd.Data)
	return t
}
