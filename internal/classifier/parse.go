package classifier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aegishield/aegishield/internal/detect"
)

var (
	codeFencePattern = regexp.MustCompile("```json?\\s*|```\\s*")
	jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)
)

// ParseRecords extracts detection records from a model answer. Models wrap
// their JSON in markdown fences or prose often enough that the array is
// located by pattern rather than trusting the whole body to be JSON.
//
// An answer with no JSON array at all means "nothing found" and parses to an
// empty slice. An answer whose array is malformed JSON is an error.
func ParseRecords(answer string) ([]detect.AIRecord, error) {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(answer, ""))
	if cleaned == "" {
		return nil, fmt.Errorf("empty model answer")
	}

	arr := jsonArrayPattern.FindString(cleaned)
	if arr == "" {
		return []detect.AIRecord{}, nil
	}

	var records []detect.AIRecord
	if err := json.Unmarshal([]byte(arr), &records); err != nil {
		return nil, fmt.Errorf("failed to parse model answer: %w", err)
	}

	valid := make([]detect.AIRecord, 0, len(records))
	for _, rec := range records {
		rec.Value = strings.TrimSpace(rec.Value)
		if rec.Value == "" || rec.Type == "" {
			continue
		}
		valid = append(valid, rec)
	}
	return valid, nil
}
