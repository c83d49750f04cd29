package scanner

import (
	"context"
	"testing"

	"github.com/buemura/rook/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdapter struct {
	stage types.Stage
}

func (m *mockAdapter) Name() types.Stage   { return m.stage }
func (m *mockAdapter) Description() string { return "mock adapter" }
func (m *mockAdapter) Run(_ context.Context, target string, _ Options) types.StageResult {
	return types.Success(m.stage, "scanned "+target)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	a := &mockAdapter{stage: types.StageSMB}
	r.Register(a)

	got, err := r.Get(types.StageSMB)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(types.StageFTP)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegistry_All(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockAdapter{stage: types.StageSMB})
	r.Register(&mockAdapter{stage: types.StageFTP})
	r.Register(&mockAdapter{stage: types.StageFTP})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, types.StageFTP, all[0].Name())
}
