package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"camtrap-pipeline/internal/model"
)

func row(fields map[string]interface{}) model.Row {
	return model.Row{Line: 1, Fields: fields}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		fields      map[string]interface{}
		wantType    string
		wantSci     string
		wantVern    string
		wantMatched bool
	}{
		{
			name:        "blank row yields blank triple",
			fields:      map[string]interface{}{"common_name": "Blank"},
			wantType:    "blank",
			wantSci:     "blank",
			wantVern:    "blank",
			wantMatched: true,
		},
		{
			name:        "human without taxonomy",
			fields:      map[string]interface{}{"common_name": "Human"},
			wantType:    "human",
			wantSci:     "Homo sapiens",
			wantVern:    "Human",
			wantMatched: true,
		},
		{
			name: "camera trapper with taxonomy",
			fields: map[string]interface{}{
				"common_name": "Human-Camera Trapper",
				"genus":       "homo",
				"species":     "SAPIENS",
			},
			wantType:    "human",
			wantSci:     "Homo sapiens",
			wantVern:    "Human-Camera Trapper",
			wantMatched: true,
		},
		{
			name:        "vehicle",
			fields:      map[string]interface{}{"common_name": "Vehicle"},
			wantType:    "vehicle",
			wantSci:     "blank",
			wantVern:    "Vehicle",
			wantMatched: true,
		},
		{
			name:        "unknown",
			fields:      map[string]interface{}{"common_name": "Unknown"},
			wantType:    "unknown",
			wantSci:     "blank",
			wantVern:    "Unknown",
			wantMatched: true,
		},
		{
			name:        "generic animal tag",
			fields:      map[string]interface{}{"common_name": "Animal"},
			wantType:    "animal",
			wantSci:     "Animalia",
			wantVern:    "Animal",
			wantMatched: true,
		},
		{
			name: "full binomial",
			fields: map[string]interface{}{
				"common_name": "Jaguar",
				"genus":       "panthera",
				"species":     "Onca",
			},
			wantType:    "animal",
			wantSci:     "Panthera onca",
			wantVern:    "Jaguar",
			wantMatched: true,
		},
		{
			name: "genus only, never padded",
			fields: map[string]interface{}{
				"common_name": "Brocket Deer",
				"genus":       "mazama",
			},
			wantType:    "animal",
			wantSci:     "Mazama",
			wantVern:    "Brocket Deer",
			wantMatched: true,
		},
		{
			name: "cascade to order",
			fields: map[string]interface{}{
				"order": "Rodentia",
			},
			wantType:    "animal",
			wantSci:     "Rodentia",
			wantVern:    "",
			wantMatched: true,
		},
		{
			name: "cascade to family",
			fields: map[string]interface{}{
				"family": "Felidae",
			},
			wantType:    "animal",
			wantSci:     "Felidae",
			wantVern:    "",
			wantMatched: true,
		},
		{
			name: "common name above genus level",
			fields: map[string]interface{}{
				"common_name": "Small Rodent",
			},
			wantType:    "animal",
			wantSci:     "Small Rodent",
			wantVern:    "Small Rodent",
			wantMatched: true,
		},
		{
			name:        "nothing to go on",
			fields:      map[string]interface{}{},
			wantType:    "unclassified",
			wantSci:     "blank",
			wantVern:    "",
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := Classify(row(tt.fields))
			assert.Equal(t, tt.wantType, got.ObservationType)
			assert.Equal(t, tt.wantSci, got.ScientificName)
			assert.Equal(t, tt.wantVern, got.VernacularName)
			assert.Equal(t, tt.wantMatched, matched)
		})
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// A blank tag wins even when taxonomy fields are populated.
	got, matched := Classify(row(map[string]interface{}{
		"common_name": "Blank",
		"genus":       "panthera",
		"species":     "onca",
	}))
	assert.True(t, matched)
	assert.Equal(t, "blank", got.ObservationType)
	assert.Equal(t, "blank", got.ScientificName)
}
