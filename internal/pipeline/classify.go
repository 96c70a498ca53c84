package pipeline

import (
	"strings"

	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/pkg/utils"
)

// BlankValue is the controlled vocabulary marker for fields that carry no
// taxonomic content.
const BlankValue = "blank"

// classificationRule couples a predicate over the common-name tag with the
// classification it produces. Rules are evaluated top to bottom, first match
// wins, so each rule can be tested in isolation.
type classificationRule struct {
	name  string
	match func(tag string, rec model.Row) bool
	build func(tag string, rec model.Row) model.Classification
}

func tagIs(values ...string) func(string, model.Row) bool {
	return func(tag string, _ model.Row) bool {
		for _, v := range values {
			if tag == v {
				return true
			}
		}
		return false
	}
}

var classificationRules = []classificationRule{
	{
		name:  "blank",
		match: tagIs("blank"),
		build: func(string, model.Row) model.Classification {
			return model.Classification{ObservationType: "blank", ScientificName: BlankValue, VernacularName: BlankValue}
		},
	},
	{
		name:  "human",
		match: tagIs("human", "human-camera trapper"),
		build: func(_ string, rec model.Row) model.Classification {
			sci := binomialName(rec)
			if sci == "" {
				sci = "Homo sapiens"
			}
			return model.Classification{ObservationType: "human", ScientificName: sci, VernacularName: rec.String("common_name")}
		},
	},
	{
		name:  "vehicle",
		match: tagIs("vehicle"),
		build: func(_ string, rec model.Row) model.Classification {
			return model.Classification{ObservationType: "vehicle", ScientificName: BlankValue, VernacularName: rec.String("common_name")}
		},
	},
	{
		name:  "unknown",
		match: tagIs("unknown"),
		build: func(_ string, rec model.Row) model.Classification {
			return model.Classification{ObservationType: "unknown", ScientificName: BlankValue, VernacularName: rec.String("common_name")}
		},
	},
	{
		name:  "unclassified",
		match: tagIs("unclassified"),
		build: func(_ string, rec model.Row) model.Classification {
			return model.Classification{ObservationType: "unclassified", ScientificName: BlankValue, VernacularName: rec.String("common_name")}
		},
	},
	{
		name:  "generic animal",
		match: tagIs("animal"),
		build: func(_ string, rec model.Row) model.Classification {
			return model.Classification{ObservationType: "animal", ScientificName: "Animalia", VernacularName: rec.String("common_name")}
		},
	},
	{
		name: "binomial",
		match: func(_ string, rec model.Row) bool {
			return binomialName(rec) != ""
		},
		build: func(_ string, rec model.Row) model.Classification {
			return model.Classification{ObservationType: "animal", ScientificName: binomialName(rec), VernacularName: rec.String("common_name")}
		},
	},
	{
		// Taxonomic cascade for rows identified above genus level: common
		// name, then order, then family, else the kingdom.
		name: "taxonomic cascade",
		match: func(_ string, rec model.Row) bool {
			return !rec.Empty("common_name") || !rec.Empty("order") || !rec.Empty("family")
		},
		build: func(_ string, rec model.Row) model.Classification {
			sci := rec.String("common_name")
			if sci == "" {
				sci = rec.String("order")
			}
			if sci == "" {
				sci = rec.String("family")
			}
			if sci == "" {
				sci = "Animalia"
			}
			return model.Classification{ObservationType: "animal", ScientificName: sci, VernacularName: rec.String("common_name")}
		},
	},
}

// Classify maps a source image row to its controlled classification triple.
// The second return value is false when no rule matched and the row fell back
// to unclassified; callers record that as a warning.
func Classify(rec model.Row) (model.Classification, bool) {
	tag := utils.FoldTag(rec.String("common_name"))
	for _, rule := range classificationRules {
		if rule.match(tag, rec) {
			return rule.build(tag, rec), true
		}
	}
	return model.Classification{
		ObservationType: "unclassified",
		ScientificName:  BlankValue,
		VernacularName:  rec.String("common_name"),
	}, false
}

// binomialName builds "Genus species" from the taxonomy fields: genus
// capitalized, species epithet lower-cased. A missing epithet yields the genus
// alone; nothing is ever padded or fabricated.
func binomialName(rec model.Row) string {
	genus := strings.ToLower(rec.String("genus"))
	if genus != "" {
		genus = strings.ToUpper(genus[:1]) + genus[1:]
	}
	species := strings.ToLower(rec.String("species"))
	switch {
	case genus != "" && species != "":
		return genus + " " + species
	case genus != "":
		return genus
	case species != "":
		return species
	default:
		return ""
	}
}
