// Package seed loads a small demo dataset into an empty store.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/service"
)

// ErrNotEmpty is returned when the store already holds users.
var ErrNotEmpty = errors.New("seed: store already has users")

type UserCreator interface {
	CreateUser(ctx context.Context, in service.RegisterInput, role string) (*models.User, error)
}

type Options struct {
	AdminEmail    string
	AdminPassword string
}

type row struct {
	kind   string
	fields map[string]any
	// refs fills fields with ids created earlier: field -> key.
	refs map[string]string
	// key, when set, records the created id for later refs.
	key string
}

var rows = []row{
	{kind: repository.KindEmployees, fields: map[string]any{"firstName": "María", "lastName": "Fernández", "email": "maria.fernandez@grc.local", "position": "Compliance Officer", "department": "Compliance"}, refs: map[string]string{"userId": "admin"}},
	{kind: repository.KindEmployees, fields: map[string]any{"firstName": "Carlos", "lastName": "Ruiz", "email": "carlos.ruiz@grc.local", "position": "Security Analyst", "department": "IT"}, refs: map[string]string{"managerId": "admin"}},
	{kind: repository.KindControls, fields: map[string]any{"name": "Quarterly access review", "framework": "ISO 27001", "frequency": "quarterly", "type": "detective", "status": "implemented"}, refs: map[string]string{"ownerId": "admin"}, key: "control"},
	{kind: repository.KindRisks, fields: map[string]any{"title": "Third-party data breach", "category": "vendor", "likelihood": int64(3), "impact": int64(5)}, refs: map[string]string{"ownerId": "admin"}},
	{kind: repository.KindTasks, fields: map[string]any{"title": "Collect access review evidence", "priority": "high", "category": "audit"}, refs: map[string]string{"assigneeId": "admin"}},
	{kind: repository.KindIncidents, fields: map[string]any{"title": "Phishing email reported", "severity": "medium"}, refs: map[string]string{"reportedBy": "admin"}},
	{kind: repository.KindPolicies, fields: map[string]any{"title": "Information Security Policy", "version": "1.0", "status": "active"}, refs: map[string]string{"ownerId": "admin"}},
	{kind: repository.KindEvidence, fields: map[string]any{"title": "Q1 access review export", "fileUrl": "https://files.grc.local/evidence/q1-access-review.csv"}, refs: map[string]string{"controlId": "control", "uploadedBy": "admin"}},
}

// Run creates the administrator and the demo rows. It refuses to touch a
// store that already has users.
func Run(ctx context.Context, log zerolog.Logger, users repository.UserRepository, auth UserCreator, res repository.ResourceRepository, opts Options) error {
	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrNotEmpty
	}

	admin, err := auth.CreateUser(ctx, service.RegisterInput{
		Email:     opts.AdminEmail,
		Password:  opts.AdminPassword,
		FirstName: "Admin",
		LastName:  "GRC",
	}, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	ids := map[string]string{"admin": admin.ID}

	for _, r := range rows {
		in := make(map[string]any, len(r.fields)+len(r.refs))
		for k, v := range r.fields {
			in[k] = v
		}
		for field, key := range r.refs {
			in[field] = ids[key]
		}
		e, err := res.Create(ctx, repository.MustKind(r.kind), in, admin.ID)
		if err != nil {
			return fmt.Errorf("seed %s: %w", r.kind, err)
		}
		if r.key != "" {
			ids[r.key] = e.ID()
		}
	}
	log.Info().Str("admin", admin.Email).Int("rows", len(rows)).Msg("demo data seeded")
	return nil
}
