package repository

import (
	"fmt"

	"hekumbi_chat/internal/entities"
)

func errReopenClosed() error {
	return &entities.ValidationError{Field: "status", Reason: "closed chats cannot be reopened", Err: entities.ErrChatClosed}
}

func errOpenChatExists(field string) error {
	return &entities.ValidationError{Field: field, Reason: "customer already has an open chat", Err: entities.ErrOpenChatExists}
}

func errQuoteTransition(from, to entities.QuoteStatus) error {
	return entities.Invalid("status", fmt.Sprintf("cannot change from %s to %s", from, to))
}

// optionalText turns a nil patch field into SQL NULL.
func optionalText[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// sourceStatuses is the set of stored statuses a status patch may start from.
func sourceStatuses(next *entities.QuoteStatus) []string {
	if next == nil {
		return nil
	}
	var out []string
	for _, s := range next.Sources() {
		out = append(out, string(s))
	}
	return out
}
