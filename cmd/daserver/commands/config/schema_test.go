package config

import (
	"encoding/json"
	"testing"
)

func TestGenerateSchema(t *testing.T) {
	data, err := generateSchema()
	if err != nil {
		t.Fatalf("generateSchema() error = %v", err)
	}

	var schema struct {
		Title                string                     `json:"title"`
		Properties           map[string]json.RawMessage `json:"properties"`
		AdditionalProperties *bool                      `json:"additionalProperties"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if schema.Title != "daserver Configuration" {
		t.Errorf("Title = %q", schema.Title)
	}
	for _, key := range []string{"logging", "refresh", "population", "shutdown", "notify", "control"} {
		if _, ok := schema.Properties[key]; !ok {
			t.Errorf("schema has no %q property", key)
		}
	}
	if schema.AdditionalProperties == nil || *schema.AdditionalProperties {
		t.Errorf("additionalProperties should be false")
	}
}
