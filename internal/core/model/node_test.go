package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetroactiveDays(t *testing.T) {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, RetroactiveDays(created, created))
	assert.Equal(t, 10, RetroactiveDays(created, created.AddDate(0, 0, -10)))
	// Future-dated events never go negative.
	assert.Equal(t, 0, RetroactiveDays(created, created.AddDate(0, 0, 5)))
	// Partial days truncate.
	assert.Equal(t, 1, RetroactiveDays(created, created.Add(-36*time.Hour)))
}

func TestEpisodeName(t *testing.T) {
	assert.Equal(t, "short", EpisodeName("short"))

	long := strings.Repeat("é", 80)
	assert.Equal(t, 50, len([]rune(EpisodeName(long))))
}

func TestValidEntityType(t *testing.T) {
	assert.True(t, ValidEntityType("Person"))
	assert.True(t, ValidEntityType("Other"))
	assert.False(t, ValidEntityType("Alien"))
	assert.False(t, ValidEntityType(""))
}

func TestEntityEdgeActive(t *testing.T) {
	now := time.Now()
	edge := &EntityEdge{}
	assert.True(t, edge.Active())

	edge.InvalidAt = &now
	assert.False(t, edge.Active())

	edge.InvalidAt = nil
	edge.DisputedBy = []string{"ep-1"}
	assert.False(t, edge.Active())
}

func TestEntityEdgeAddEpisode(t *testing.T) {
	edge := &EntityEdge{Episodes: []string{"ep-1"}}
	edge.AddEpisode("ep-1")
	edge.AddEpisode("ep-2")
	assert.Equal(t, []string{"ep-1", "ep-2"}, edge.Episodes)
}

func TestSleepTargetTiered(t *testing.T) {
	assert.False(t, SleepTarget{GroupID: "g"}.Tiered())
	assert.False(t, SleepTarget{STMGroupID: "stm"}.Tiered())
	assert.True(t, SleepTarget{STMGroupID: "stm", LTMGroupID: "ltm"}.Tiered())
}
