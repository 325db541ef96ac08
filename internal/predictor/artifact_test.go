package predictor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadArtifact_JSON(t *testing.T) {
	a, err := ReadArtifact("testdata/model.json")
	require.NoError(t, err)

	assert.Equal(t, "test-churn", a.Name)
	assert.Equal(t, []string{"tenure", "Contract", "TotalCharges"}, a.FeatureNames)
	assert.InDelta(t, 0.5, a.Threshold, 1e-9)
	assert.InDelta(t, 10, a.Numeric["tenure"].Scale, 1e-9)
	assert.InDelta(t, -3, a.Categorical["Contract"]["Two year"], 1e-9)
}

func TestReadArtifact_YAMLMatchesJSON(t *testing.T) {
	fromJSON, err := ReadArtifact("testdata/model.json")
	require.NoError(t, err)
	fromYAML, err := ReadArtifact("testdata/model.yaml")
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
}

func TestReadArtifact_Missing(t *testing.T) {
	_, err := ReadArtifact(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read artifact")
}

func TestParseArtifact_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "not json",
			doc:     `{"name":`,
			wantErr: "validate artifact",
		},
		{
			name:    "missing feature names",
			doc:     `{"name":"m","intercept":0,"threshold":0.5}`,
			wantErr: "feature_names",
		},
		{
			name:    "threshold out of range",
			doc:     `{"name":"m","feature_names":["a"],"intercept":0,"threshold":1.5,"numeric":{"a":{"weight":1,"mean":0,"scale":1}}}`,
			wantErr: "threshold",
		},
		{
			name:    "zero scale",
			doc:     `{"name":"m","feature_names":["a"],"intercept":0,"threshold":0.5,"numeric":{"a":{"weight":1,"mean":0,"scale":0}}}`,
			wantErr: "scale",
		},
		{
			name:    "feature without encoding",
			doc:     `{"name":"m","feature_names":["a","b"],"intercept":0,"threshold":0.5,"numeric":{"a":{"weight":1,"mean":0,"scale":1}}}`,
			wantErr: "b has no encoding",
		},
		{
			name:    "double encoding",
			doc:     `{"name":"m","feature_names":["a"],"intercept":0,"threshold":0.5,"numeric":{"a":{"weight":1,"mean":0,"scale":1}},"categorical":{"a":{"x":1}}}`,
			wantErr: "both numeric and categorical",
		},
		{
			name:    "undeclared encoding",
			doc:     `{"name":"m","feature_names":["a"],"intercept":0,"threshold":0.5,"numeric":{"a":{"weight":1,"mean":0,"scale":1},"z":{"weight":1,"mean":0,"scale":1}}}`,
			wantErr: "undeclared feature z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArtifact([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadArtifact_CorruptYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unclosed"), 0o644))

	_, err := ReadArtifact(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml artifact")
}
