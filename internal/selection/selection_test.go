package selection

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/registry"
	"camera-viewer-go/internal/storage"
)

func rec(name string) camera.Record {
	return camera.Record{Host: "10.0.0.1", Port: 554, DeviceName: name}
}

func TestToggleTwiceRestores(t *testing.T) {
	s := New()
	s.Toggle(rec("A"))
	s.Toggle(rec("B"))
	before := s.Keys()

	assert.True(t, s.Toggle(rec("C")))
	assert.False(t, s.Toggle(rec("C")))
	assert.Equal(t, before, s.Keys())

	assert.False(t, s.Toggle(rec("A")))
	assert.True(t, s.Toggle(rec("A")))
	assert.Equal(t, []string{"B", "A"}, s.Keys())
}

func TestToggleMatchesByKeyOnly(t *testing.T) {
	s := New()
	s.Toggle(rec("A"))

	edited := rec("A")
	edited.Host = "other"
	assert.False(t, s.Toggle(edited))
	assert.Equal(t, 0, s.Len())
}

func TestBuildIsSnapshot(t *testing.T) {
	s := New()
	s.Toggle(rec("A"))
	session := s.Build()

	s.Toggle(rec("B"))
	s.Clear()

	require.Equal(t, 1, session.Len())
	assert.Equal(t, "A", session.Cameras()[0].DeviceName)

	got := session.Cameras()
	got[0].Host = "changed"
	assert.Equal(t, "10.0.0.1", session.Cameras()[0].Host)
	assert.NotEmpty(t, session.ID())
	assert.NotEqual(t, session.ID(), s.Build().ID())
}

func TestSyncDropsDeletedAndRefreshesEdited(t *testing.T) {
	s := New()
	s.Toggle(rec("A"))
	s.Toggle(rec("B"))
	s.Toggle(rec("C"))

	editedC := rec("C")
	editedC.Port = 8554
	s.Sync([]camera.Record{editedC, rec("A")})

	session := s.Build()
	require.Equal(t, 2, session.Len())
	assert.Equal(t, "A", session.Cameras()[0].DeviceName)
	assert.Equal(t, 8554, session.Cameras()[1].Port)
}

func TestRename(t *testing.T) {
	s := New()
	s.Toggle(rec("A"))
	s.Rename("A", rec("A2"))
	assert.True(t, s.Contains("A2"))
	assert.False(t, s.Contains("A"))

	s.Rename("missing", rec("X"))
	assert.Equal(t, []string{"A2"}, s.Keys())
}

// Three cameras registered, A and C picked: the session is exactly [A, C]
// and a later edit of B in the registry does not reach it.
func TestSelectAandC(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(storage.NewMemoryStore(), registry.Options{Logger: zerolog.Nop()})
	require.NoError(t, reg.Save(ctx, []camera.Record{rec("A"), rec("B"), rec("C")}))

	s := New()
	list := reg.Load(ctx)
	s.Toggle(list[0])
	s.Toggle(list[2])
	session := s.Build()

	editedB := rec("B")
	editedB.Host = "10.9.9.9"
	_, err := reg.Update(ctx, "B", editedB)
	require.NoError(t, err)

	assert.Equal(t, []camera.Record{rec("A"), rec("C")}, session.Cameras())
}
