package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irislabs/iris-memory/internal/models"
)

func TestGetSummary_NoneSaved(t *testing.T) {
	m := newTestManager(t, "alice")

	summary, err := m.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestSaveSummary_TooShort(t *testing.T) {
	m := newTestManager(t, "alice")

	err := m.SaveSummary(context.Background(), "too short")
	require.ErrorIs(t, err, ErrSummaryTooShort)

	summary, err := m.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, summary, "rejected summary must not be persisted")
}

func TestSummary_StalenessTracksLiveCounts(t *testing.T) {
	m := newTestManager(t, "alice")
	ctx := context.Background()

	_, err := m.CreateEntities(ctx, []models.EntityInput{
		{Name: "Go", Observations: []string{"compiled"}},
	}, false)
	require.NoError(t, err)

	require.NoError(t, m.SaveSummary(ctx, "Alice knows about the Go language."))

	summary, err := m.GetSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.IsStale)
	assert.Equal(t, 1, summary.EntityCount)
	assert.Equal(t, 1, summary.ObservationCount)

	// Any change to the live counts makes the cached summary stale.
	_, err = m.AddObservations(ctx, []models.ObservationInput{
		{EntityName: "Go", Contents: []string{"garbage collected"}},
	}, true)
	require.NoError(t, err)

	summary, err = m.GetSummary(ctx)
	require.NoError(t, err)
	assert.True(t, summary.IsStale)
	assert.Equal(t, 1, summary.UserEditCount)

	// Re-saving records the new counts and clears staleness.
	require.NoError(t, m.SaveSummary(ctx, "Alice knows about Go and its runtime."))
	summary, err = m.GetSummary(ctx)
	require.NoError(t, err)
	assert.False(t, summary.IsStale)
	assert.Equal(t, "Alice knows about Go and its runtime.", summary.Summary)
	assert.Equal(t, 2, summary.ObservationCount)
}

func TestSummary_StalenessClearsWhenCountsReturn(t *testing.T) {
	m := newTestManager(t, "alice")
	ctx := context.Background()

	_, err := m.CreateEntities(ctx, []models.EntityInput{
		{Name: "Go", Observations: []string{"compiled"}},
	}, false)
	require.NoError(t, err)

	require.NoError(t, m.SaveSummary(ctx, "Alice knows about the Go language."))

	_, err = m.CreateEntities(ctx, []models.EntityInput{{Name: "Rust"}}, false)
	require.NoError(t, err)

	summary, err := m.GetSummary(ctx)
	require.NoError(t, err)
	require.True(t, summary.IsStale)

	// Deleting the extra entity restores the recorded counts, so staleness
	// clears with no re-save: it is recomputed on every read, never latched.
	_, err = m.DeleteEntities(ctx, []string{"Rust"})
	require.NoError(t, err)

	summary, err = m.GetSummary(ctx)
	require.NoError(t, err)
	assert.False(t, summary.IsStale)
	assert.Equal(t, 1, summary.EntityCount)
	assert.Equal(t, 1, summary.ObservationCount)
}

func TestSaveSummary_UpsertKeepsOneRowPerTenant(t *testing.T) {
	m := newTestManager(t, "alice")
	ctx := context.Background()

	require.NoError(t, m.SaveSummary(ctx, "first version of the summary"))
	require.NoError(t, m.SaveSummary(ctx, "second version of the summary"))

	summary, err := m.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second version of the summary", summary.Summary)
}

func TestGetUserEdits_NewestFirst(t *testing.T) {
	m := newTestManager(t, "alice")
	ctx := context.Background()

	_, err := m.CreateEntities(ctx, []models.EntityInput{
		{Name: "Go", Observations: []string{"older edit"}},
	}, true)
	require.NoError(t, err)

	// Distinct timestamps so the DESC ordering is observable.
	time.Sleep(5 * time.Millisecond)

	_, err = m.AddObservations(ctx, []models.ObservationInput{
		{EntityName: "Go", Contents: []string{"newer edit"}},
	}, true)
	require.NoError(t, err)

	// Non-edit observations never show up.
	_, err = m.AddObservations(ctx, []models.ObservationInput{
		{EntityName: "Go", Contents: []string{"automatic observation"}},
	}, false)
	require.NoError(t, err)

	edits, err := m.GetUserEdits(ctx)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, "newer edit", edits[0].Observation)
	assert.Equal(t, "older edit", edits[1].Observation)
	assert.Equal(t, "Go", edits[0].EntityName)
}
