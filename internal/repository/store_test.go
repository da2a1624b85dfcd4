package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storesUnderTest(t *testing.T) map[string]interfaces.RecordStore {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "hekumbi.db"))
	require.NoError(t, err)
	t.Cleanup(sqliteStore.Close)

	return map[string]interfaces.RecordStore{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func seedCustomer(t *testing.T, s interfaces.RecordStore, name string) *entities.Customer {
	t.Helper()
	now := time.Now().UTC()
	c := &entities.Customer{ID: uuid.NewString(), Name: name, Email: name + "@example.ao", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateCustomer(context.Background(), c))
	return c
}

func seedChat(t *testing.T, s interfaces.RecordStore, customerID string, createdAt time.Time) *entities.Chat {
	t.Helper()
	c := &entities.Chat{
		ID: uuid.NewString(), CustomerID: customerID,
		Status: entities.ChatActive, Priority: entities.PriorityMedium,
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	require.NoError(t, s.CreateChat(context.Background(), c))
	return c
}

func TestStore_OneOpenChatPerCustomer(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cu := seedCustomer(t, s, "ana")
			first := seedChat(t, s, cu.ID, time.Now().UTC())

			second := &entities.Chat{ID: uuid.NewString(), CustomerID: cu.ID, Status: entities.ChatPending,
				Priority: entities.PriorityLow, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
			err := s.CreateChat(ctx, second)
			require.Error(t, err)
			assert.True(t, entities.IsValidation(err))
			assert.True(t, errors.Is(err, entities.ErrOpenChatExists))

			open, err := s.FindOpenChat(ctx, cu.ID)
			require.NoError(t, err)
			require.NotNil(t, open)
			assert.Equal(t, first.ID, open.ID)

			closed := entities.ChatClosed
			_, err = s.UpdateChat(ctx, first.ID, entities.ChatPatch{Status: &closed}, time.Now().UTC())
			require.NoError(t, err)

			open, err = s.FindOpenChat(ctx, cu.ID)
			require.NoError(t, err)
			assert.Nil(t, open)
			require.NoError(t, s.CreateChat(ctx, second))
		})
	}
}

func TestStore_MessagesOrderedByCreatedAtThenInsertion(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cu := seedCustomer(t, s, "bruno")
			chat := seedChat(t, s, cu.ID, time.Now().UTC())

			base := time.Now().UTC().Truncate(time.Millisecond)
			inputs := []struct {
				content string
				at      time.Time
			}{
				{"segunda", base.Add(time.Second)},
				{"primeira", base},
				{"empate-a", base.Add(2 * time.Second)},
				{"empate-b", base.Add(2 * time.Second)},
			}
			for _, in := range inputs {
				require.NoError(t, s.CreateMessage(ctx, &entities.Message{
					ID: uuid.NewString(), ChatID: chat.ID, Sender: entities.SenderCustomer,
					Content: in.content, MessageType: entities.MessageText, CreatedAt: in.at,
				}))
			}

			got, err := s.ListMessages(ctx, chat.ID)
			require.NoError(t, err)
			var contents []string
			for _, m := range got {
				contents = append(contents, m.Content)
				assert.Equal(t, entities.DeliverySent, m.Delivery)
			}
			assert.Equal(t, []string{"primeira", "segunda", "empate-a", "empate-b"}, contents)
		})
	}
}

func TestStore_TouchChatLastMessageOnlyMovesForward(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cu := seedCustomer(t, s, "carla")
			chat := seedChat(t, s, cu.ID, time.Now().UTC())
			pending := entities.ChatPending
			_, err := s.UpdateChat(ctx, chat.ID, entities.ChatPatch{Status: &pending}, time.Now().UTC())
			require.NoError(t, err)

			now := time.Now().UTC().Truncate(time.Millisecond)
			newer := &entities.Message{ChatID: chat.ID, Content: "mais recente", CreatedAt: now}
			older := &entities.Message{ChatID: chat.ID, Content: "antiga", CreatedAt: now.Add(-time.Minute)}

			got, err := s.TouchChatLastMessage(ctx, newer, 1, false)
			require.NoError(t, err)
			assert.Equal(t, "mais recente", got.LastMessage)
			assert.Equal(t, 1, got.UnreadCount)
			assert.Equal(t, entities.ChatPending, got.Status)

			got, err = s.TouchChatLastMessage(ctx, older, 0, true)
			require.NoError(t, err)
			assert.Equal(t, "mais recente", got.LastMessage)
			assert.Equal(t, 1, got.UnreadCount)
			assert.Equal(t, entities.ChatActive, got.Status)
			require.NotNil(t, got.LastMessageTime)
			assert.True(t, got.LastMessageTime.Equal(now))

			_, err = s.TouchChatLastMessage(ctx, &entities.Message{ChatID: "missing", CreatedAt: now}, 0, false)
			assert.True(t, entities.IsNotFound(err))
		})
	}
}

func TestStore_ListChatsJoinsCustomerNewestFirst(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := seedCustomer(t, s, "daniel")
			b := seedCustomer(t, s, "eva")
			base := time.Now().UTC()
			older := seedChat(t, s, a.ID, base.Add(-time.Hour))
			newer := seedChat(t, s, b.ID, base)

			rows, err := s.ListChats(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, newer.ID, rows[0].ID)
			assert.Equal(t, "eva", rows[0].CustomerName)
			assert.Equal(t, older.ID, rows[1].ID)
			assert.Equal(t, "daniel@example.ao", rows[1].CustomerEmail)
		})
	}
}

func TestStore_QuotesAndActivities(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cu := seedCustomer(t, s, "filipa")
			now := time.Now().UTC().Truncate(time.Millisecond)
			q := &entities.Quote{
				ID: uuid.NewString(), QuoteNumber: "HEK-123456", CustomerID: cu.ID,
				ServiceType: "Limpeza Residencial", Area: 150, Frequency: "semanal", Urgency: "normal",
				EstimatedValue: 52500, Status: entities.QuotePending, Priority: entities.PriorityLow,
				ValidUntil: now.Add(entities.QuoteValidity), CreatedAt: now, UpdatedAt: now,
			}
			require.NoError(t, s.CreateQuote(ctx, q))

			approved := entities.QuoteApproved
			updated, err := s.UpdateQuote(ctx, q.ID, entities.QuotePatch{Status: &approved}, now.Add(time.Second))
			require.NoError(t, err)
			assert.Equal(t, entities.QuoteApproved, updated.Status)
			assert.Equal(t, "HEK-123456", updated.QuoteNumber)

			got, err := s.GetQuote(ctx, q.ID)
			require.NoError(t, err)
			assert.Equal(t, entities.QuoteApproved, got.Status)
			assert.Equal(t, int64(52500), got.EstimatedValue)

			_, err = s.GetQuote(ctx, "nope")
			assert.True(t, entities.IsNotFound(err))

			rows, err := s.ListQuotes(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "filipa", rows[0].CustomerName)

			for i, desc := range []string{"primeira", "segunda", "terceira"} {
				require.NoError(t, s.AppendActivity(ctx, &entities.Activity{
					ID: uuid.NewString(), EntityType: entities.EntityQuote, EntityID: q.ID,
					Action: "updated", Description: desc,
					Metadata:  map[string]interface{}{"n": float64(i)},
					CreatedAt: now.Add(time.Duration(i) * time.Second),
				}))
			}
			recent, err := s.RecentActivities(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "terceira", recent[0].Description)
			assert.Equal(t, "segunda", recent[1].Description)
			assert.Equal(t, float64(1), recent[1].Metadata["n"])
		})
	}
}

func TestStore_UpdateCustomerPatchesOnlyGivenFields(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cu := seedCustomer(t, s, "gil")
			phone := "+244 900 000 000"

			got, err := s.UpdateCustomer(ctx, cu.ID, entities.ContactPatch{Phone: &phone}, time.Now().UTC())
			require.NoError(t, err)
			assert.Equal(t, "gil", got.Name)
			assert.Equal(t, phone, got.Phone)

			_, err = s.UpdateCustomer(ctx, "missing", entities.ContactPatch{Phone: &phone}, time.Now().UTC())
			assert.True(t, entities.IsNotFound(err))
		})
	}
}

func TestStore_UpdateChatKeepsConcurrentFields(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cu := seedCustomer(t, s, "helena")
			chat := seedChat(t, s, cu.ID, time.Now().UTC())

			// A message mirrored after the caller last read the chat.
			at := time.Now().UTC().Truncate(time.Millisecond)
			_, err := s.TouchChatLastMessage(ctx, &entities.Message{ChatID: chat.ID, Content: "mensagem nova", CreatedAt: at}, 1, false)
			require.NoError(t, err)

			high := entities.PriorityHigh
			got, err := s.UpdateChat(ctx, chat.ID, entities.ChatPatch{Priority: &high}, at.Add(time.Second))
			require.NoError(t, err)
			assert.Equal(t, "mensagem nova", got.LastMessage)
			assert.Equal(t, 1, got.UnreadCount)
			assert.Equal(t, entities.PriorityHigh, got.Priority)
			assert.Equal(t, entities.ChatActive, got.Status)

			pending := entities.ChatPending
			got, err = s.UpdateChat(ctx, chat.ID, entities.ChatPatch{Status: &pending}, at.Add(2*time.Second))
			require.NoError(t, err)
			assert.Equal(t, entities.ChatPending, got.Status)
			assert.Equal(t, entities.PriorityHigh, got.Priority, "a status patch leaves priority alone")

			closed := entities.ChatClosed
			_, err = s.UpdateChat(ctx, chat.ID, entities.ChatPatch{Status: &closed}, at.Add(3*time.Second))
			require.NoError(t, err)

			active := entities.ChatActive
			_, err = s.UpdateChat(ctx, chat.ID, entities.ChatPatch{Status: &active}, at.Add(4*time.Second))
			assert.True(t, errors.Is(err, entities.ErrChatClosed))

			low := entities.PriorityLow
			got, err = s.UpdateChat(ctx, chat.ID, entities.ChatPatch{Priority: &low}, at.Add(5*time.Second))
			require.NoError(t, err)
			assert.Equal(t, entities.ChatClosed, got.Status)
			assert.Equal(t, entities.PriorityLow, got.Priority)

			_, err = s.UpdateChat(ctx, "missing", entities.ChatPatch{Priority: &low}, at)
			assert.True(t, entities.IsNotFound(err))
		})
	}
}

func TestStore_UpdateQuoteEnforcesLifecycle(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cu := seedCustomer(t, s, "ivo")
			now := time.Now().UTC().Truncate(time.Millisecond)
			q := &entities.Quote{
				ID: uuid.NewString(), QuoteNumber: "HEK-654321", CustomerID: cu.ID,
				ServiceType: "Limpeza Comercial", Area: 300, EstimatedValue: 150000,
				Status: entities.QuotePending, Priority: entities.PriorityLow,
				ValidUntil: now.Add(entities.QuoteValidity), CreatedAt: now, UpdatedAt: now,
			}
			require.NoError(t, s.CreateQuote(ctx, q))

			value := int64(180000)
			got, err := s.UpdateQuote(ctx, q.ID, entities.QuotePatch{EstimatedValue: &value}, now.Add(time.Second))
			require.NoError(t, err)
			assert.Equal(t, value, got.EstimatedValue)
			assert.Equal(t, entities.QuotePending, got.Status)

			sent := entities.QuoteSent
			_, err = s.UpdateQuote(ctx, q.ID, entities.QuotePatch{Status: &sent}, now.Add(2*time.Second))
			require.NoError(t, err)

			pending := entities.QuotePending
			_, err = s.UpdateQuote(ctx, q.ID, entities.QuotePatch{Status: &pending}, now.Add(3*time.Second))
			assert.True(t, entities.IsValidation(err))

			stored, err := s.GetQuote(ctx, q.ID)
			require.NoError(t, err)
			assert.Equal(t, entities.QuoteSent, stored.Status)
			assert.Equal(t, value, stored.EstimatedValue)

			_, err = s.UpdateQuote(ctx, "missing", entities.QuotePatch{Status: &sent}, now)
			assert.True(t, entities.IsNotFound(err))
		})
	}
}

func TestStore_RecentActivitiesBreakTiesByInsertion(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Now().UTC().Truncate(time.Millisecond)
			for _, desc := range []string{"a", "b", "c", "d"} {
				require.NoError(t, s.AppendActivity(ctx, &entities.Activity{
					ID: uuid.NewString(), EntityType: entities.EntityChat, EntityID: "c1",
					Action: "updated", Description: desc, CreatedAt: at,
				}))
			}
			for i := 0; i < 3; i++ {
				recent, err := s.RecentActivities(ctx, 3)
				require.NoError(t, err)
				var got []string
				for _, a := range recent {
					got = append(got, a.Description)
				}
				assert.Equal(t, []string{"d", "c", "b"}, got)
			}
		})
	}
}
