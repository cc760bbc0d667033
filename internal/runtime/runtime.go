// Package runtime describes the process-wide state that recurring jobs consult
// before every run: the runtime level, the server role of this instance and
// whether this instance currently owns MainDom.
//
// The scheduler only reads these values. Whoever owns the state (boot
// sequence, server registration, the MainDom lock) writes it.
package runtime

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Level is the boot stage of the application.
type Level int32

const (
	LevelUnknown Level = iota
	LevelBoot
	LevelInstall
	LevelUpgrade
	LevelUpgradeFailed
	LevelRun
	LevelBootFailed
)

func (l Level) String() string {
	switch l {
	case LevelBoot:
		return "boot"
	case LevelInstall:
		return "install"
	case LevelUpgrade:
		return "upgrade"
	case LevelUpgradeFailed:
		return "upgrade_failed"
	case LevelRun:
		return "run"
	case LevelBootFailed:
		return "boot_failed"
	default:
		return "unknown"
	}
}

// ServerRole classifies this instance within the deployment topology.
type ServerRole int32

const (
	RoleUnknown ServerRole = iota
	RoleSingle
	RoleSchedulingPublisher
	RoleSubscriber
)

// AllRoles lists every server role, including RoleUnknown.
var AllRoles = []ServerRole{RoleUnknown, RoleSingle, RoleSchedulingPublisher, RoleSubscriber}

func (r ServerRole) String() string {
	switch r {
	case RoleSingle:
		return "single"
	case RoleSchedulingPublisher:
		return "scheduling_publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return "unknown"
	}
}

// ParseServerRole parses the names produced by ServerRole.String.
func ParseServerRole(s string) (ServerRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return RoleSingle, nil
	case "scheduling_publisher", "schedulingpublisher":
		return RoleSchedulingPublisher, nil
	case "subscriber":
		return RoleSubscriber, nil
	case "unknown":
		return RoleUnknown, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown server role: %q", s)
	}
}

// RuntimeState reports the current runtime level.
type RuntimeState interface {
	Level() Level
}

// ServerRoleAccessor reports the role of this instance.
type ServerRoleAccessor interface {
	CurrentServerRole() ServerRole
}

// MainDom reports whether this instance is the authoritative writer.
type MainDom interface {
	IsMainDom() bool
}

// State is a RuntimeState backed by an atomic value.
type State struct {
	level atomic.Int32
}

// NewState creates a State at the given level.
func NewState(level Level) *State {
	s := &State{}
	s.level.Store(int32(level))
	return s
}

func (s *State) Level() Level {
	return Level(s.level.Load())
}

func (s *State) SetLevel(level Level) {
	s.level.Store(int32(level))
}

// StaticRoleAccessor always reports the same role.
type StaticRoleAccessor struct {
	Role ServerRole
}

func (a StaticRoleAccessor) CurrentServerRole() ServerRole {
	return a.Role
}

// MainDomFlag is a MainDom whose value is set by its owner.
type MainDomFlag struct {
	v atomic.Bool
}

// NewMainDomFlag creates a flag with the given initial value.
func NewMainDomFlag(isMainDom bool) *MainDomFlag {
	f := &MainDomFlag{}
	f.v.Store(isMainDom)
	return f
}

func (f *MainDomFlag) IsMainDom() bool {
	return f.v.Load()
}

func (f *MainDomFlag) Set(isMainDom bool) {
	f.v.Store(isMainDom)
}
