package builders

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/maindom"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
	"github.com/aatumaykin/cmsjobs/internal/serverregistration"
)

// Cluster holds the role and MainDom sources of this instance.
type Cluster struct {
	Identity string
	Roles    runtime.ServerRoleAccessor
	MainDom  runtime.MainDom

	// Set only when server registration elects the role.
	Registration *serverregistration.Service
	Elected      *serverregistration.ElectedRoleAccessor

	// Set only when the MainDom lease is enabled.
	Lock *maindom.SQLLock
}

type ClusterBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewClusterBuilder(cfg *config.Config, log *logger.Logger) *ClusterBuilder {
	return &ClusterBuilder{
		config: cfg,
		logger: log,
	}
}

// Identity returns the configured instance id, or hostname plus a random
// suffix so two processes on one host never collide.
func (b *ClusterBuilder) Identity() string {
	if id := strings.TrimSpace(b.config.Runtime.InstanceID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "cmsjobs"
	}
	return host + "/" + uuid.NewString()[:8]
}

func (b *ClusterBuilder) Build(storage *Storage) (*Cluster, error) {
	c := &Cluster{Identity: b.Identity()}

	roleName := strings.ToLower(b.config.Runtime.ServerRole)
	switch {
	case roleName == "auto" && b.config.ServerRegistration.Enabled:
		c.Registration = serverregistration.NewService(storage.Registrations, b.config.ServerRegistration.Address, b.logger)
		c.Elected = serverregistration.NewElectedRoleAccessor(storage.Registrations, c.Identity)
		c.Roles = c.Elected
	case roleName == "auto":
		c.Roles = runtime.StaticRoleAccessor{Role: runtime.RoleSingle}
	default:
		role, err := runtime.ParseServerRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("invalid server role: %w", err)
		}
		c.Roles = runtime.StaticRoleAccessor{Role: role}
		if b.config.ServerRegistration.Enabled {
			// registration still runs so other servers can see this one
			c.Registration = serverregistration.NewService(storage.Registrations, b.config.ServerRegistration.Address, b.logger)
		}
	}

	if b.config.MainDom.Enabled {
		c.Lock = maindom.NewSQLLock(storage.Conn, c.Identity, b.config.MainDom.Lease(), b.config.MainDom.Renew(), b.logger)
		c.MainDom = c.Lock
	} else {
		c.MainDom = runtime.NewMainDomFlag(true)
	}

	b.logger.Info("cluster configured",
		logger.Field{Key: "identity", Value: c.Identity},
		logger.Field{Key: "server_role", Value: roleName},
		logger.Field{Key: "registration", Value: c.Registration != nil},
		logger.Field{Key: "main_dom_lease", Value: c.Lock != nil})

	return c, nil
}
