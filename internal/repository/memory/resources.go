package memory

import (
	"context"
	"time"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

var (
	_ repository.UserRepository     = (*Users)(nil)
	_ repository.ResourceRepository = (*Resources)(nil)
)

// Resources is the resource repository view of a Store.
type Resources struct{ s *Store }

func (s *Store) Resources() *Resources { return &Resources{s: s} }

func (r *Resources) List(ctx context.Context, k *repository.Kind, q repository.Query) ([]models.Entity, int, error) {
	s := r.s
	if err := s.enter(ctx); err != nil {
		return nil, 0, err
	}
	plan, err := repository.Prepare(k, q)
	if err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]models.Entity, 0, len(s.tables[k.Name]))
	for _, e := range s.tables[k.Name] {
		rows = append(rows, e)
	}
	out, total := repository.Evaluate(plan, rows)
	for _, e := range out {
		s.scrub(k, e)
	}
	return out, total, nil
}

func (r *Resources) Get(ctx context.Context, k *repository.Kind, id string, fields []string) (models.Entity, error) {
	s := r.s
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	proj, err := repository.Projection(k, fields)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tables[k.Name][id]
	if !ok {
		return nil, k.NotFound()
	}
	out := repository.Project(e, proj)
	s.scrub(k, out)
	return out, nil
}

func (r *Resources) Create(ctx context.Context, k *repository.Kind, in map[string]any, actorID string) (models.Entity, error) {
	s := r.s
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	vals, err := repository.CheckCreate(k, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs(k, vals); err != nil {
		return nil, err
	}

	e := models.Entity{}
	for _, f := range k.Public() {
		e[f.Name] = nil
	}
	for name, v := range vals {
		e[name] = v
	}
	now := s.now()
	e["id"] = newID()
	e["createdAt"] = now
	e["updatedAt"] = now
	if k.Audited {
		e["createdBy"] = nullable(actorID)
		e["updatedBy"] = nullable(actorID)
	}
	s.tables[k.Name][e.ID()] = e
	return repository.Project(e, k.Public()), nil
}

func (r *Resources) Update(ctx context.Context, k *repository.Kind, id string, in map[string]any, actorID string, ifUpdatedAt *time.Time) (models.Entity, error) {
	s := r.s
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	vals, err := repository.CheckUpdate(k, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tables[k.Name][id]
	if !ok {
		return nil, k.NotFound()
	}
	if ifUpdatedAt != nil {
		if at, _ := cur["updatedAt"].(time.Time); !at.Equal(*ifUpdatedAt) {
			return nil, apperr.Conflict(k.Singular + " was modified concurrently")
		}
	}
	if err := s.checkRefs(k, vals); err != nil {
		return nil, err
	}

	next := cur.Clone()
	for name, v := range vals {
		next[name] = v
	}
	next["updatedAt"] = s.now()
	if k.Audited {
		next["updatedBy"] = nullable(actorID)
	}
	s.tables[k.Name][id] = next
	out := repository.Project(next, k.Public())
	s.scrub(k, out)
	return out, nil
}

func (r *Resources) Delete(ctx context.Context, k *repository.Kind, id string) error {
	s := r.s
	if err := s.enter(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tables[k.Name][id]
	if !ok {
		return k.NotFound()
	}
	delete(s.tables[k.Name], id)
	if k.Name == repository.KindUsers {
		email, _ := e["email"].(string)
		delete(s.byEmail, email)
	}
	return nil
}

func (r *Resources) CountRelated(ctx context.Context, userID string) (map[string]int, error) {
	s := r.s
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]int{}
	for _, k := range repository.Kinds() {
		refs := relationRefs(k)
		if len(refs) == 0 {
			continue
		}
		n := 0
		for _, e := range s.tables[k.Name] {
			for _, f := range refs {
				if e[f.Name] == userID {
					n++
					break
				}
			}
		}
		out[k.Name] = n
	}
	return out, nil
}

func (r *Resources) Ping(ctx context.Context) error { return r.s.enter(ctx) }

// relationRefs are the client-set user references (owner, assignee, ...),
// excluding the audit columns.
func relationRefs(k *repository.Kind) []*repository.Field {
	var out []*repository.Field
	for _, f := range k.UserRefs() {
		if f.Writable {
			out = append(out, f)
		}
	}
	return out
}

// checkRefs must run under the write lock.
func (s *Store) checkRefs(k *repository.Kind, vals models.Entity) error {
	for target, ids := range repository.RefIDs(k, vals) {
		for _, id := range ids {
			if _, ok := s.tables[target][id]; !ok {
				return repository.MissingRef(singular(target), id)
			}
		}
	}
	return nil
}

// scrub nulls references whose target no longer exists. Caller holds a lock.
func (s *Store) scrub(k *repository.Kind, e models.Entity) {
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Type != repository.TypeRef {
			continue
		}
		id, ok := e[f.Name].(string)
		if !ok {
			continue
		}
		if _, exists := s.tables[f.Ref][id]; !exists {
			e[f.Name] = nil
		}
	}
}

func singular(kind string) string {
	if k, ok := repository.LookupKind(kind); ok {
		return k.Singular
	}
	return kind
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}
