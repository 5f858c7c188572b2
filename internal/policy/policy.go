// Package policy decides which role may perform which action on which
// resource kind. The table is a casbin model plus CSV policy embedded in the
// binary; anything not listed is denied.
package policy

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

//go:embed model.conf
var modelConf string

//go:embed policy.csv
var policyCSV string

const (
	ActionList   = "list"
	ActionGet    = "get"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var actions = map[string]bool{
	ActionList: true, ActionGet: true, ActionCreate: true, ActionUpdate: true, ActionDelete: true,
}

type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
	log      zerolog.Logger
}

// New loads the embedded table.
func New(log zerolog.Logger) (*Authorizer, error) {
	return NewFromCSV(log, policyCSV)
}

// NewFromCSV builds an Authorizer over a caller-supplied policy in casbin's
// CSV form ("p, role, kind, action" per line).
func NewFromCSV(log zerolog.Logger, csv string) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(strings.TrimSpace(csv)))
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policy: %w", err)
	}
	return &Authorizer{enforcer: e, log: log}, nil
}

// Authorize reports whether role may perform action on kind. Unknown roles,
// kinds and actions are denied, and so is any enforcer failure.
func (a *Authorizer) Authorize(role, kind, action string) bool {
	if !models.ValidRole(role) || !actions[action] {
		return false
	}
	if _, ok := repository.LookupKind(kind); !ok {
		return false
	}
	ok, err := a.enforcer.Enforce(role, kind, action)
	if err != nil {
		a.log.Error().Err(err).Str("role", role).Str("kind", kind).Str("action", action).Msg("policy evaluation failed")
		return false
	}
	return ok
}
