//go:build integration
// +build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestHistory(t *testing.T) *PGHistory {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	require.NoError(t, h.EnsureSchema(ctx))
	return h
}

func TestPGHistory_RecordAndRecent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	h := setupTestHistory(t)
	defer h.Close()
	ctx := context.Background()

	id := uuid.NewString()
	snap := types.NewSnapshot(id, "http://localhost:3000", time.Now().Add(time.Hour))
	snap.Performance.MarkAbsent("timed out after 30s")
	require.NoError(t, h.RecordSnapshot(ctx, snap))

	report := &types.Report{
		GeneratedAt:       time.Now(),
		BaselineTimestamp: snap.Timestamp,
		CurrentTimestamp:  time.Now(),
		Summary:           types.Summary{Total: 2, Passed: 1, Failed: 1},
		Findings: []types.Finding{
			{Category: "api./health", Status: types.StatusFail, Baseline: "200", Current: "503"},
		},
	}
	reportID, err := h.RecordReport(ctx, id, uuid.NewString(), report)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, reportID)

	recent, err := h.Recent(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, id, recent[0].SnapshotID)
	assert.Equal(t, []string{"performance"}, recent[0].AbsentDimensions)
	assert.Equal(t, 1, recent[0].Comparisons)
	require.NotNil(t, recent[0].LastPassed)
	assert.False(t, *recent[0].LastPassed)

	stored, err := h.GetSnapshot(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Performance.Absent)

	missing, err := h.GetSnapshot(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
