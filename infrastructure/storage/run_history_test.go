package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shopflow/domain/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHistory_EmptyWhenMissing(t *testing.T) {
	store := NewRunHistory(filepath.Join(t.TempDir(), "nested", "history.json"))
	runs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunHistory_AppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	store := NewRunHistory(path)

	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	first := entities.RunRecord{
		Scenario:   "add-to-cart",
		Driver:     "playwright",
		Status:     entities.RunStatusPassed,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Steps: []entities.StepResult{
			{Name: "open listing", Status: entities.StepPassed, Duration: time.Second},
		},
	}
	require.NoError(t, store.Append(first))
	require.NoError(t, store.Append(entities.RunRecord{ID: "fixed", Scenario: "header-menu", Status: entities.RunStatusFailed, Error: "boom"}))

	runs, err := NewRunHistory(path).List()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	_, err = uuid.Parse(runs[0].ID)
	assert.NoError(t, err, "generated id is a uuid")
	assert.Equal(t, "add-to-cart", runs[0].Scenario)
	assert.True(t, runs[0].StartedAt.Equal(started))
	assert.Equal(t, first.Steps, runs[0].Steps)

	assert.Equal(t, "fixed", runs[1].ID)
	assert.Equal(t, entities.RunStatusFailed, runs[1].Status)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRunHistory_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewRunHistory(path)
	_, err := store.List()
	assert.Error(t, err)
	assert.Error(t, store.Append(entities.RunRecord{Scenario: "x"}))
}
