package repo

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"azure-iot-serializer/agent/internal/db"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	return gdb
}

func TestCommandRepository(t *testing.T) {
	r := NewCommandRepository(openDB(t))

	first := uuid.NewString()
	require.NoError(t, r.Create(&db.CommandRecord{CommandID: first, DeviceID: "d1", Action: "SetACState", Result: "success"}))
	require.NoError(t, r.Create(&db.CommandRecord{CommandID: uuid.NewString(), DeviceID: "d1", Action: "Ping", Result: "error"}))
	require.NoError(t, r.Create(&db.CommandRecord{CommandID: uuid.NewString(), DeviceID: "d2", Action: "Ping"}))

	recs, err := r.Latest("d1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ping", recs[0].Action)
	assert.Equal(t, "SetACState", recs[1].Action)

	ok, err := r.Exists(first)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Exists(uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, r.Create(&db.CommandRecord{CommandID: first, DeviceID: "d1"}))
}

func TestDesiredRepository(t *testing.T) {
	r := NewDesiredRepository(openDB(t))

	none, err := r.LastApplied("d1")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, r.Create(&db.DesiredSnapshot{DeviceID: "d1", Document: `{"a":1}`, Result: "success", State: `{"A":1}`}))
	require.NoError(t, r.Create(&db.DesiredSnapshot{DeviceID: "d1", Document: `{"a":"x"}`, Result: "failed"}))

	last, err := r.LastApplied("d1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, `{"A":1}`, last.State)

	all, err := r.Latest("d1", 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "failed", all[0].Result)
}
