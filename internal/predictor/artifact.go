package predictor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Artifact is the serialized form of a logistic churn model.
type Artifact struct {
	Name         string                        `json:"name"`
	Version      string                        `json:"version"`
	FeatureNames []string                      `json:"feature_names"`
	Intercept    float64                       `json:"intercept"`
	Threshold    float64                       `json:"threshold"`
	Numeric      map[string]NumericFeature     `json:"numeric"`
	Categorical  map[string]map[string]float64 `json:"categorical"`
}

// NumericFeature standardizes a numeric column before weighting it:
// contribution = weight * (x - mean) / scale.
type NumericFeature struct {
	Weight float64 `json:"weight"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

const artifactSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "feature_names", "intercept", "threshold"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "feature_names": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"type": "string", "minLength": 1}
    },
    "intercept": {"type": "number"},
    "threshold": {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1},
    "numeric": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["weight", "mean", "scale"],
        "properties": {
          "weight": {"type": "number"},
          "mean": {"type": "number"},
          "scale": {"type": "number", "exclusiveMinimum": 0}
        }
      }
    },
    "categorical": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {"type": "number"}
      }
    }
  }
}`

// ReadArtifact reads and validates a JSON or YAML artifact file.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "predictor: read artifact %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, eris.Wrapf(err, "predictor: parse yaml artifact %s", path)
		}
	}

	return ParseArtifact(data)
}

// ParseArtifact validates JSON artifact bytes against the schema and decodes them.
func ParseArtifact(data []byte) (*Artifact, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(artifactSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, eris.Wrap(err, "predictor: validate artifact")
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, eris.Errorf("predictor: invalid artifact: %s", strings.Join(errs, "; "))
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, eris.Wrap(err, "predictor: decode artifact")
	}
	if err := a.validateFeatures(); err != nil {
		return nil, err
	}
	return &a, nil
}

// validateFeatures checks that every declared feature has exactly one encoding.
func (a *Artifact) validateFeatures() error {
	var errs []string
	for _, name := range a.FeatureNames {
		_, num := a.Numeric[name]
		_, cat := a.Categorical[name]
		switch {
		case num && cat:
			errs = append(errs, name+" is both numeric and categorical")
		case !num && !cat:
			errs = append(errs, name+" has no encoding")
		}
	}

	declared := make(map[string]bool, len(a.FeatureNames))
	for _, name := range a.FeatureNames {
		declared[name] = true
	}
	for name := range a.Numeric {
		if !declared[name] {
			errs = append(errs, "numeric encoding for undeclared feature "+name)
		}
	}
	for name := range a.Categorical {
		if !declared[name] {
			errs = append(errs, "categorical encoding for undeclared feature "+name)
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("predictor: invalid artifact: %s", strings.Join(errs, "; "))
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
