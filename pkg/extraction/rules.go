package extraction

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// KeywordGroup canonicalizes every match of its alternation pattern to a
// single standard term, e.g. diabetes/diabetic -> "diabetes".
type KeywordGroup struct {
	Term    string `yaml:"term" json:"term"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

type RulesConfig struct {
	Groups []KeywordGroup `yaml:"groups" json:"groups"`
}

func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}

	if len(cfg.Groups) == 0 {
		return RulesConfig{}, errors.New("no condition keyword groups configured")
	}

	return cfg, nil
}

// DefaultRules is the built-in condition vocabulary. Group order decides
// first-seen ordering of keyword-pass output.
func DefaultRules() RulesConfig {
	return RulesConfig{Groups: []KeywordGroup{
		{Term: "diabetes", Pattern: `\bdiabet(?:es|ic)\b`},
		{Term: "hypertension", Pattern: `\bhypertension\b|\bhigh blood pressure\b`},
		{Term: "heart disease", Pattern: `\bcardiac\b|\bcardiovascular\b|\bheart\b`},
		{Term: "cancer", Pattern: `\bcancer\b|\bcarcinoma\b|\btumou?r\b|\bmalignan(?:t|cy)\b`},
		{Term: "asthma", Pattern: `\basthma(?:tic)?\b`},
		{Term: "copd", Pattern: `\bcopd\b|\bchronic obstructive pulmonary\b|\bemphysema\b`},
		{Term: "arthritis", Pattern: `\barthriti(?:s|c)\b|\brheumatoid\b`},
		{Term: "depression", Pattern: `\bdepress(?:ion|ive|ed)\b`},
		{Term: "anxiety", Pattern: `\banxiety\b|\bpanic disorder\b`},
		{Term: "alzheimer's disease", Pattern: `\balzheimer'?s?\b|\bdementia\b`},
		{Term: "parkinson's disease", Pattern: `\bparkinson'?s?\b`},
		{Term: "epilepsy", Pattern: `\bepilep(?:sy|tic)\b|\bseizure disorder\b`},
		{Term: "stroke", Pattern: `\bstroke\b|\bcerebrovascular accident\b`},
		{Term: "kidney disease", Pattern: `\bkidney\b|\brenal\b`},
		{Term: "liver disease", Pattern: `\bliver\b|\bhepatic\b|\bcirrhosis\b`},
		{Term: "obesity", Pattern: `\bobes(?:e|ity)\b`},
		{Term: "osteoporosis", Pattern: `\bosteoporo(?:sis|tic)\b`},
		{Term: "migraine", Pattern: `\bmigraines?\b`},
		{Term: "anemia", Pattern: `\ban(?:ae|e)mi(?:a|c)\b`},
		{Term: "thyroid disorder", Pattern: `\bthyroid\b|\bhyp(?:o|er)thyroid(?:ism)?\b`},
	}}
}
