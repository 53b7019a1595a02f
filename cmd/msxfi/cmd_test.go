package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msxfi/tensor"
	"msxfi/utils"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg, err := utils.LoadConfig()
	require.NoError(t, err)
	cmd := NewCLI(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func TestMatrixCommand(t *testing.T) {
	out, err := execute(t, "matrix", "--matrix_size", "8", "--seed", "3", "--mode", "fefet_mlc")
	require.NoError(t, err)
	assert.Contains(t, out, "Faulty matrix (sample):")
	assert.Contains(t, out, "fefet_mlc")
	assert.Contains(t, out, "seed 3")
}

func TestMatrixCommandRejectsCapacity(t *testing.T) {
	_, err := execute(t, "matrix", "--matrix_size", "4", "--rep_conf", "8 8 8")
	assert.Error(t, err)
}

func TestModelCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lenet.json")
	w := tensor.New(4, 4)
	for i := range w.Data {
		w.Data[i] = float64(i)/8 - 1
	}
	require.NoError(t, utils.SaveWeights(path, &utils.ModelWeights{
		Version: "1.0",
		Layers: map[string]utils.LayerWeight{
			"fc1": {Weight: utils.TensorToWeightData("fc1_weight", w)},
		},
	}))

	out, err := execute(t, "model", path, "--seed", "5", "--mode", "fefet_mlc")
	require.NoError(t, err)
	want := filepath.Join(dir, "lenet_fefet_mlc_s5_qafloat_i2_f4.json")
	assert.Contains(t, out, want)

	faulty, err := utils.LoadWeights(want)
	require.NoError(t, err)
	assert.Len(t, faulty.Layers["fc1"].Weight.Data, 16)
}

func TestErrmapCommand(t *testing.T) {
	out, err := execute(t, "errmap", "--mode", "dram1t", "--refresh_t", "64000", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "bit flip probability")

	out, err = execute(t, "errmap", "--mode", "rram_mlc", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "rram_mlc, 16 levels")

	_, err = execute(t, "errmap", "--mode", "dram1t")
	assert.Error(t, err, "refresh time is required for DRAM")
}

func TestTechsCommand(t *testing.T) {
	out, err := execute(t, "techs")
	require.NoError(t, err)
	assert.Contains(t, out, "rram_mlc")
	assert.Contains(t, out, "dram3t")
}
