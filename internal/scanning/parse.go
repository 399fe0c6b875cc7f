package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseScanJSON recovers a ScanResult from a model response. Vision
// models wrap JSON in markdown fences or prose despite instructions, so
// the object is sliced out between the first '{' and the last '}' before
// unmarshaling.
func parseScanJSON(text string) (*ScanResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var result ScanResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	result.Text = strings.TrimSpace(result.Text)

	// Drop candidates without a usable name; the parser re-derives
	// anything useful from the raw text anyway.
	cleaned := result.Items[:0]
	for _, item := range result.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		cleaned = append(cleaned, item)
	}
	result.Items = cleaned

	return &result, nil
}
