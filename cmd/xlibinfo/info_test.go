package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func testReport() infoReport {
	return infoReport{
		Display:        ":0",
		Vendor:         "The X.Org Foundation",
		Release:        12101004,
		Protocol:       "11.0",
		MaxRequestSize: 4194303,
		Keycodes:       "8-255",
		PixmapFormats:  []string{"depth 24, 32 bpp, pad 32"},
		Screens: []screenReport{{
			Root:       "0x3d5",
			Size:       "1920x1080 pixels (508x285 mm)",
			RootDepth:  24,
			RootVisual: "0x21",
			Depths:     []string{"24 (1 visuals)", "32 (1 visuals)"},
		}},
	}
}

func TestRenderInfo(t *testing.T) {
	out := renderInfo(testReport())
	for _, want := range []string{"Display :0", "The X.Org Foundation", "4194303 words", "Screen 0", "0x3d5", "32 (1 visuals)"} {
		assert.Contains(t, out, want)
	}
}

func TestInfoYAML(t *testing.T) {
	out, err := yaml.Marshal(testReport())
	require.NoError(t, err)

	var back infoReport
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, testReport(), back)
	assert.Contains(t, string(out), "max_request_size: 4194303")
}

func TestGet32(t *testing.T) {
	assert.Equal(t, uint32(0x04030201), get32([]byte{1, 2, 3, 4}))
}
