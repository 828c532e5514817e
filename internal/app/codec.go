package app

import (
	"encoding/json"
	"fmt"

	"quizzz-service/internal/domain"
)

// toFields serialises a typed document into the store's key/value shape.
func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return fields, nil
}

// fromDocument decodes a stored document into v. The document ID is not part of Data.
func fromDocument(doc domain.Document, v any) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}

// DecodeDraft converts a stored draft document.
func DecodeDraft(doc domain.Document) (domain.Draft, error) {
	var d domain.Draft
	if err := fromDocument(doc, &d); err != nil {
		return domain.Draft{}, err
	}
	d.ID = doc.ID
	normalizeContent(&d.QuizContent)
	return d, nil
}

// DecodeQuiz converts a stored published quiz document.
func DecodeQuiz(doc domain.Document) (domain.Quiz, error) {
	var q domain.Quiz
	if err := fromDocument(doc, &q); err != nil {
		return domain.Quiz{}, err
	}
	q.ID = doc.ID
	normalizeContent(&q.QuizContent)
	return q, nil
}

// normalizeContent replaces nil slices so callers never see null lists.
func normalizeContent(c *domain.QuizContent) {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Questions == nil {
		c.Questions = []domain.Question{}
	}
	for i := range c.Questions {
		if c.Questions[i].Options == nil {
			c.Questions[i].Options = []domain.Option{}
		}
	}
}
