package techdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msxfi/types/errtypes"
)

func TestSample(t *testing.T) {
	s := Sample()
	assert.Equal(t, []string{"dram1t", "dram3t", "fefet_300d", "fefet_50d", "fefet_mlc", "rram_mlc"}, s.Technologies())

	rram, err := s.NVMTechnology("rram_mlc")
	require.NoError(t, err)
	assert.Equal(t, "rram_mlc", rram.Name)
	assert.Equal(t, Gaussian, rram.Family)
	assert.Equal(t, 4, rram.MaxBits())

	class, err := s.Class("dram3t")
	require.NoError(t, err)
	assert.Equal(t, DRAM, class)
}

func TestUnknownTechnology(t *testing.T) {
	s := Sample()
	_, err := s.Class("pcm")
	assert.True(t, errors.Is(err, errtypes.ErrDataUnavailable))
	_, err = s.NVMTechnology("dram1t")
	assert.True(t, errors.Is(err, errtypes.ErrDataUnavailable))

	fefet, err := s.NVMTechnology("fefet_50d")
	require.NoError(t, err)
	_, err = fefet.Levels(2)
	var missing *errtypes.DataUnavailableError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "fefet_50d", missing.Technology)
}

func TestLoadYAML(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "store.yaml"))
	require.NoError(t, err)

	toy, err := s.NVMTechnology("toy_gauss")
	require.NoError(t, err)
	levels, err := toy.Levels(2)
	require.NoError(t, err)
	assert.Len(t, levels, 4)
	assert.Equal(t, 12.0, levels[3].Mean)

	dram, err := s.DRAMTechnology("toy_dram")
	require.NoError(t, err)
	assert.Equal(t, []int{16, 32}, dram.FeatureSizes())
}

func TestNodeSelection(t *testing.T) {
	dram, err := Sample().DRAMTechnology("dram1t")
	require.NoError(t, err)

	cases := []struct {
		target int
		want   int
		exact  bool
	}{
		{14, 14, true},
		{16, 14, false},
		{22, 22, true},
		{45, 22, false},
		{5, 7, false},
	}
	for _, tc := range cases {
		size, node, exact, err := dram.Node(tc.target)
		require.NoError(t, err)
		assert.Equal(t, tc.want, size, "target %d", tc.target)
		assert.Equal(t, tc.exact, exact, "target %d", tc.target)
		assert.Equal(t, dram.Nodes[tc.want].Vdd, node.Vdd)
	}
}

func TestLeakageAt(t *testing.T) {
	dram, err := Sample().DRAMTechnology("dram1t")
	require.NoError(t, err)
	node := dram.Nodes[14]

	temp, ioff, err := node.LeakageAt(300)
	require.NoError(t, err)
	assert.Equal(t, 300, temp)
	assert.Equal(t, 9.2e-12, ioff)

	temp, _, err = node.LeakageAt(340)
	require.NoError(t, err)
	assert.Equal(t, 350, temp)

	// ties go to the lower temperature
	temp, _, err = node.LeakageAt(325)
	require.NoError(t, err)
	assert.Equal(t, 300, temp)

	temp, _, err = node.LeakageAt(1000)
	require.NoError(t, err)
	assert.Equal(t, 400, temp)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"level count": `{"nvm": {"x": {"family": "gaussian", "cells": {"2": [{"mean": 1, "std": 1}]}}}}`,
		"family":      `{"nvm": {"x": {"family": "lognormal", "cells": {}}}}`,
		"std":         `{"nvm": {"x": {"family": "gaussian", "cells": {"1": [{"mean": 1}, {"mean": 2, "std": 1}]}}}}`,
		"gamma scale": `{"nvm": {"x": {"family": "gamma", "cells": {"1": [{"shape": 1}, {"shape": 2, "scale": 1}]}}}}`,
		"vdd":         `{"dram": {"d": {"nodes": {"14": {"cell_capacitance": 1e-15, "leakage": {"300": 1e-12}}}}}}`,
		"leakage":     `{"dram": {"d": {"nodes": {"14": {"cell_capacitance": 1e-15, "vdd": 0.8}}}}}`,
		"duplicate":   `{"nvm": {"x": {"family": "gamma", "cells": {}}}, "dram": {"x": {"nodes": {}}}}`,
		"syntax":      `{"nvm": `,
	}
	for name, data := range cases {
		_, err := Parse([]byte(data), false)
		assert.Error(t, err, name)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.toml")
	require.NoError(t, os.WriteFile(path, []byte("nvm = {}"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
