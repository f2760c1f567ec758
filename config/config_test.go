package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/errors"
)

const validYAML = `
name: vision-demo
components:
  - name: cam
    factory: camera
    config:
      fps: 30
  - name: cls
    factory: classifier
    config:
      model_path: /models/efficientnet.tflite
      max_results: 3
  - name: out
    factory: console
connections:
  - from: cam.image
    to: cls.image
  - from: cls.results
    to: out.results
  - from: cls.latency
    to: out.latency
`

func TestParseValid(t *testing.T) {
	def, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "vision-demo", def.Name)
	require.Len(t, def.Components, 3)
	assert.Equal(t, "camera", def.Components[0].Factory)
	require.Len(t, def.Connections, 3)

	raw, err := def.Components[1].RawConfig()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "efficientnet")

	// Components without a config block produce no raw config.
	raw, err = def.Components[2].RawConfig()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "vision-demo", def.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.True(t, errors.IsFatal(err))
}

func TestValidationRules(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty name", `
components:
  - name: a
    factory: console
`},
		{"no components", `
name: p
components: []
`},
		{"duplicate names", `
name: p
components:
  - name: a
    factory: console
  - name: a
    factory: console
`},
		{"missing factory", `
name: p
components:
  - name: a
`},
		{"malformed endpoint", `
name: p
components:
  - name: a
    factory: console
connections:
  - from: a
    to: a.results
`},
		{"undeclared instance", `
name: p
components:
  - name: a
    factory: console
connections:
  - from: ghost.results
    to: a.results
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	instance, port, err := ParseEndpoint("cam.image")
	require.NoError(t, err)
	assert.Equal(t, "cam", instance)
	assert.Equal(t, "image", port)

	_, _, err = ParseEndpoint("noport")
	assert.Error(t, err)
}
