package store

import (
	"encoding/json"
	"fmt"

	"github.com/resumelens/resumelens/internal/models"
)

// Detected sections travel as a JSON document in a nullable text column.

func encodeSections(sections []models.Section) (*string, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("encode sections: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeSections(raw *string) ([]models.Section, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var out []models.Section
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return out, nil
}
