package auth

import (
	"encoding/json"
	"fmt"

	"quizzz-service/internal/domain"
)

func userFields(u user) map[string]any {
	raw, _ := json.Marshal(u)
	fields := map[string]any{}
	_ = json.Unmarshal(raw, &fields)
	return fields
}

func decodeUser(doc domain.Document) (user, error) {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return user{}, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	var u user
	if err := json.Unmarshal(raw, &u); err != nil {
		return user{}, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	return u, nil
}
