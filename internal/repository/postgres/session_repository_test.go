package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/domain/session"
	"dcaadvisor/internal/testsupport"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

func TestSessionRepository_CreateGet(t *testing.T) {
	testDB := testsupport.NewTestPostgres(t)
	repo := NewSessionRepository(testDB.Tx())
	ctx := context.Background()

	sess := session.New("", "llama3.1")
	sess.PortfolioID = "default"
	conv := agent.NewConversation("You are an advisor")
	conv.Append(
		agent.UserMessage("price of btc?"),
		agent.AssistantMessage("", tools.Call{ID: "c1", Name: "price_lookup", Arguments: map[string]any{"symbol": "BTC"}}),
	)
	sess.Record(conv)

	require.NoError(t, repo.Create(ctx, sess))
	assert.True(t, errors.Is(repo.Create(ctx, sess), errors.ErrAlreadyExists))

	got, err := repo.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", got.Model)
	assert.Equal(t, "default", got.PortfolioID)
	assert.Equal(t, 1, got.Turns)
	require.Equal(t, 3, got.Conversation.Len())
	last := got.Conversation.Messages[2]
	require.Len(t, last.ToolCalls, 1)
	assert.Equal(t, "price_lookup", last.ToolCalls[0].Name)
	assert.Equal(t, "BTC", last.ToolCalls[0].Arguments["symbol"])
}

func TestSessionRepository_UpdateListDelete(t *testing.T) {
	testDB := testsupport.NewTestPostgres(t)
	repo := NewSessionRepository(testDB.Tx())
	ctx := context.Background()

	older := session.New("", "m")
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	newer := session.New("", "m")
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	older.Record(agent.NewConversation("sys"))
	require.NoError(t, repo.Update(ctx, older))

	list, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.Get(ctx, older.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, older.ID), errors.ErrNotFound))
	assert.True(t, errors.Is(repo.Update(ctx, older), errors.ErrNotFound))
}
