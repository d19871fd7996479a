package versioning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListRestore(t *testing.T) {
	dir := t.TempDir()
	reg := filepath.Join(dir, "system.reg")
	require.NoError(t, os.WriteFile(reg, []byte("first"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dosdevices"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dosdevices", "marker"), []byte("x"), 0644))

	m := New(hclog.NewNullLogger())
	first, err := m.CreateState(dir, "First boot")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "First boot", first.Comment)

	require.NoError(t, os.WriteFile(reg, []byte("second"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("n"), 0644))
	second, err := m.CreateState(dir, "after install")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Index)

	states, err := m.States(dir)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, second.ID, states[0].ID)

	require.NoError(t, m.Restore(dir, first.ID))
	data, err := os.ReadFile(reg)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "new.txt"))
}

func TestStates_NoRepository(t *testing.T) {
	states, err := New(hclog.NewNullLogger()).States(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestCreateState_NothingChanged(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.reg"), []byte("u"), 0644))
	m := New(hclog.NewNullLogger())
	_, err := m.CreateState(dir, "one")
	require.NoError(t, err)
	s, err := m.CreateState(dir, "two")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Index)
}
