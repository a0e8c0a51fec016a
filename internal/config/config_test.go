package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFromPath(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		want        Config
		errContains string
	}{
		{
			name: "all fields",
			content: `{
  "name": "storage",
  "module": "example.com/storage/gen",
  "model": "./idl/storage.shape.gql",
  "rules": "./idl/rules.json",
  "output": "./out",
  "package": "types",
  "publicConstrainedTypes": true,
  "ignoreUnsupportedConstraints": true,
  "watch": {"paths": ["./idl"], "exclude": ["*.tmp"]}
}`,
			want: Config{
				Name:                         "storage",
				Module:                       "example.com/storage/gen",
				Model:                        "./idl/storage.shape.gql",
				Rules:                        "./idl/rules.json",
				Output:                       "./out",
				Package:                      "types",
				PublicConstrainedTypes:       true,
				IgnoreUnsupportedConstraints: true,
				Watch:                        WatchConfig{Paths: []string{"./idl"}, Exclude: []string{"*.tmp"}},
			},
		},
		{
			name:    "defaults",
			content: `{"name": "storage"}`,
			want: Config{
				Name:    "storage",
				Module:  "storage",
				Model:   DefaultModel,
				Rules:   DefaultRules,
				Output:  DefaultOutput,
				Package: DefaultPackage,
				Watch: WatchConfig{
					Paths:   []string{DefaultModel, DefaultRules},
					Exclude: []string{".git/", "gen/"},
				},
				defaultModel: true,
				defaultRules: true,
			},
		},
		{
			name:        "missing name",
			content:     `{"module": "example.com/storage"}`,
			errContains: `Config.Name fails the "required" check`,
		},
		{
			name:        "bad package",
			content:     `{"name": "storage", "package": "Storage-Types"}`,
			errContains: `Config.Package fails the "lowercase" check`,
		},
		{
			name:        "empty watch path",
			content:     `{"name": "storage", "watch": {"paths": [""]}}`,
			errContains: `Config.Watch.Paths[0] fails the "required" check`,
		},
		{
			name:        "malformed json",
			content:     `{"name": `,
			errContains: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)

			got, err := LoadConfigFromPath(path)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestLoadConfigFromPath_Missing(t *testing.T) {
	// Test: A missing file is a read error
	_, err := LoadConfigFromPath(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigFromDir(t *testing.T) {
	// Test plan:
	// - The config is found in a parent directory
	// - The directory holding it is returned
	// - ErrNoConfig is returned when nothing is found

	root := t.TempDir()
	writeConfig(t, root, `{"name": "storage"}`)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, dir, err := loadConfigFromDir(nested)
	require.NoError(t, err)
	assert.Equal(t, root, dir)
	assert.Equal(t, "storage", cfg.Name)

	_, _, err = loadConfigFromDir(t.TempDir())
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestInputs(t *testing.T) {
	// Test plan:
	// - Relative inputs resolve against the project directory
	// - Missing default inputs are skipped
	// - Missing explicit inputs are errors

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.shape.gql"), []byte("scalar Name"), 0o644))

	cfg, err := LoadConfigFromPath(writeConfig(t, dir, `{"name": "storage"}`))
	require.NoError(t, err)
	model, rules, err := cfg.Inputs(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model.shape.gql"), model)
	assert.Empty(t, rules)

	cfg, err = LoadConfigFromPath(writeConfig(t, dir, `{"name": "storage", "rules": "./missing.yaml"}`))
	require.NoError(t, err)
	_, _, err = cfg.Inputs(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOutputDir(t *testing.T) {
	// Test: Relative output directories resolve against the project directory
	cfg := &Config{Output: "./gen"}
	assert.Equal(t, filepath.Join("/work", "gen"), cfg.OutputDir("/work"))

	cfg.Output = "/abs/out"
	assert.Equal(t, "/abs/out", cfg.OutputDir("/work"))
}
