package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerRole(t *testing.T) {
	for _, role := range AllRoles {
		parsed, err := ParseServerRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}

	parsed, err := ParseServerRole(" SchedulingPublisher ")
	require.NoError(t, err)
	assert.Equal(t, RoleSchedulingPublisher, parsed)

	_, err = ParseServerRole("replica")
	assert.Error(t, err)
}

func TestState(t *testing.T) {
	s := NewState(LevelBoot)
	assert.Equal(t, LevelBoot, s.Level())

	s.SetLevel(LevelRun)
	assert.Equal(t, LevelRun, s.Level())
	assert.Equal(t, "run", s.Level().String())
}

func TestMainDomFlag(t *testing.T) {
	f := NewMainDomFlag(false)
	assert.False(t, f.IsMainDom())
	f.Set(true)
	assert.True(t, f.IsMainDom())
}

func TestStaticRoleAccessor(t *testing.T) {
	var accessor ServerRoleAccessor = StaticRoleAccessor{Role: RoleSubscriber}
	assert.Equal(t, RoleSubscriber, accessor.CurrentServerRole())
}
