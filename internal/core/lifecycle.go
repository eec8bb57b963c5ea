package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Optional lifecycle hooks. LoadModule runs them in the order
// Configure, Provision, Validate; App.Start then calls Start in load order
// and App.Stop calls Stop in reverse.

// Configurable modules decode their block under "modules:" in aura.yaml.
// Configure is skipped when the block is absent.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults and acquire what they need from the
// AppContext, such as the data directory or an earlier module's service.
// A store opens its database here so later modules can resolve it.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned configuration. Validate must
// not mutate the module.
type Validator interface {
	Validate() error
}

// Starter modules launch background work such as the HTTP listener or the
// cron scheduler. Services registered after LoadModules are visible here.
type Starter interface {
	Start() error
}

// Stopper modules release resources. Stop is called once per loaded
// module, including modules without Start.
type Stopper interface {
	Stop(ctx context.Context) error
}
