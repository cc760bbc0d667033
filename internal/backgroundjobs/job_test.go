package backgroundjobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

func TestJobBase_Defaults(t *testing.T) {
	base := NewJobBase("defaults", time.Minute, time.Second)

	assert.Equal(t, "defaults", base.Name())
	assert.Equal(t, time.Minute, base.Period())
	assert.Equal(t, time.Second, base.Delay())
	assert.Equal(t, []runtime.ServerRole{runtime.RoleSingle, runtime.RoleSchedulingPublisher}, base.ServerRoles())
}

func TestJobBase_SetPeriodRaisesPeriodChanged(t *testing.T) {
	base := NewJobBase("periodic", time.Minute, 0)
	var seen []time.Duration
	base.OnPeriodChanged(func(p time.Duration) { seen = append(seen, p) })

	base.SetPeriod(time.Minute)
	base.SetPeriod(0)
	base.SetPeriod(2 * time.Minute)

	assert.Equal(t, []time.Duration{2 * time.Minute}, seen)
	assert.Equal(t, 2*time.Minute, base.Period())
}

func TestJobBase_ServerRolesIsCopy(t *testing.T) {
	base := NewJobBase("roles", time.Minute, 0, runtime.RoleSubscriber)
	roles := base.ServerRoles()
	roles[0] = runtime.RoleSingle

	assert.Equal(t, []runtime.ServerRole{runtime.RoleSubscriber}, base.ServerRoles())
}
