package postgres

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

type ResourceRepo struct{ db DB }

func NewResourceRepo(db DB) repository.ResourceRepository { return &ResourceRepo{db: db} }

func itoa(i int) string { return strconv.Itoa(i) }

var sqlOps = map[repository.Op]string{
	repository.OpEq:  "=",
	repository.OpGt:  ">",
	repository.OpGte: ">=",
	repository.OpLt:  "<",
	repository.OpLte: "<=",
}

// selectList renders the projection. References are resolved against their
// target table so dangling ids come back as NULL.
func selectList(fields []*repository.Field) string {
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Type == repository.TypeRef {
			target := repository.MustKind(f.Ref)
			cols = append(cols, fmt.Sprintf("(SELECT r.id FROM %s r WHERE r.id = t.%s) AS %s",
				target.Table, f.Column, f.Column))
			continue
		}
		cols = append(cols, "t."+f.Column)
	}
	return strings.Join(cols, ", ")
}

// caseFolded text columns compare and sort ignoring case, like the
// in-process evaluator.
func caseFolded(f *repository.Field) bool {
	return f.Type == repository.TypeString || f.Type == repository.TypeEnum
}

func buildWhere(p *repository.Plan) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	for _, pr := range p.Filter {
		f, _ := p.Kind.Field(pr.Field)
		if pr.Value == nil {
			if pr.Op == repository.OpEq {
				clauses = append(clauses, "t."+f.Column+" IS NULL")
			} else {
				clauses = append(clauses, "FALSE")
			}
			continue
		}
		args = append(args, pr.Value)
		col, ph := "t."+f.Column, "$"+itoa(len(args))
		if caseFolded(f) {
			col, ph = "lower("+col+")", "lower("+ph+")"
		}
		clauses = append(clauses, col+" "+sqlOps[pr.Op]+" "+ph)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(p *repository.Plan) string {
	f, _ := p.Kind.Field(p.Order.Field)
	dir := "ASC"
	if p.Order.Desc {
		dir = "DESC"
	}
	col := "t." + f.Column
	if caseFolded(f) {
		col = "lower(" + col + ")"
	}
	nulls := "NULLS FIRST"
	if p.Order.Desc {
		nulls = "NULLS LAST"
	}
	if f.Column == "id" {
		return "ORDER BY t.id " + dir
	}
	return fmt.Sprintf("ORDER BY %s %s %s, t.id ASC", col, dir, nulls)
}

// List returns a filtered, ordered page and the total count for the filter.
func (r *ResourceRepo) List(ctx context.Context, k *repository.Kind, q repository.Query) ([]models.Entity, int, error) {
	p, err := repository.Prepare(k, q)
	if err != nil {
		return nil, 0, err
	}
	whereSQL, args := buildWhere(p)

	var total int
	countSQL := `SELECT COUNT(*) FROM ` + k.Table + ` t ` + whereSQL
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, translate(err, nil)
	}

	listSQL := fmt.Sprintf(`
		SELECT %s
		FROM %s t
		%s
		%s
		LIMIT $%d OFFSET $%d`,
		selectList(p.Project), k.Table, whereSQL, orderBy(p), len(args)+1, len(args)+2)
	args = append(args, p.Limit, p.Offset)

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, translate(err, nil)
	}
	out, err := collect(rows, p.Project)
	if err != nil {
		return nil, 0, translate(err, nil)
	}
	return out, total, nil
}

func (r *ResourceRepo) Get(ctx context.Context, k *repository.Kind, id string, fields []string) (models.Entity, error) {
	proj, err := repository.Projection(k, fields)
	if err != nil {
		return nil, err
	}
	return getOne(ctx, r.db, k, id, proj)
}

func getOne(ctx context.Context, q querier, k *repository.Kind, id string, proj []*repository.Field) (models.Entity, error) {
	rows, err := q.Query(ctx, `SELECT `+selectList(proj)+` FROM `+k.Table+` t WHERE t.id = $1`, id)
	if err != nil {
		return nil, translate(err, nil)
	}
	out, err := collect(rows, proj)
	if err != nil {
		return nil, translate(err, nil)
	}
	if len(out) == 0 {
		return nil, k.NotFound()
	}
	return out[0], nil
}

func (r *ResourceRepo) Create(ctx context.Context, k *repository.Kind, in map[string]any, actorID string) (models.Entity, error) {
	vals, err := repository.CheckCreate(k, in)
	if err != nil {
		return nil, err
	}

	var created models.Entity
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := checkRefs(ctx, tx, k, vals); err != nil {
			return err
		}
		id := uuid.NewString()
		cols := []string{"id"}
		args := []any{id}
		for _, name := range sortedKeys(vals) {
			f, _ := k.Field(name)
			cols = append(cols, f.Column)
			args = append(args, vals[name])
		}
		if k.Audited {
			cols = append(cols, "created_by", "updated_by")
			args = append(args, nullable(actorID), nullable(actorID))
		}
		ph := make([]string, len(args))
		for i := range args {
			ph[i] = "$" + itoa(i+1)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			k.Table, strings.Join(cols, ", "), strings.Join(ph, ", ")), args...); err != nil {
			return translate(err, nil)
		}
		e, err := getOne(ctx, tx, k, id, k.Public())
		created = e
		return err
	})
	if err != nil {
		return nil, translate(err, nil)
	}
	return created, nil
}

// Update locks the row, checks the optional updatedAt precondition and
// applies the partial update in one transaction.
func (r *ResourceRepo) Update(ctx context.Context, k *repository.Kind, id string, in map[string]any, actorID string, ifUpdatedAt *time.Time) (models.Entity, error) {
	vals, err := repository.CheckUpdate(k, in)
	if err != nil {
		return nil, err
	}

	var updated models.Entity
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var cur time.Time
		if err := tx.QueryRow(ctx, `SELECT updated_at FROM `+k.Table+` WHERE id = $1 FOR UPDATE`, id).
			Scan(&cur); err != nil {
			return translate(err, k.NotFound())
		}
		if ifUpdatedAt != nil && !cur.Equal(*ifUpdatedAt) {
			return apperr.Conflict(k.Singular + " was modified concurrently")
		}
		if err := checkRefs(ctx, tx, k, vals); err != nil {
			return err
		}

		args := []any{id}
		sets := []string{}
		for _, name := range sortedKeys(vals) {
			f, _ := k.Field(name)
			args = append(args, vals[name])
			sets = append(sets, f.Column+" = $"+itoa(len(args)))
		}
		sets = append(sets, "updated_at = now()")
		if k.Audited {
			args = append(args, nullable(actorID))
			sets = append(sets, "updated_by = $"+itoa(len(args)))
		}
		if _, err := tx.Exec(ctx, `UPDATE `+k.Table+` SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...); err != nil {
			return translate(err, nil)
		}
		e, err := getOne(ctx, tx, k, id, k.Public())
		updated = e
		return err
	})
	if err != nil {
		return nil, translate(err, nil)
	}
	return updated, nil
}

func (r *ResourceRepo) Delete(ctx context.Context, k *repository.Kind, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM `+k.Table+` WHERE id = $1`, id)
	if err != nil {
		return translate(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return k.NotFound()
	}
	return nil
}

// CountRelated counts, in a single round trip, the rows of every kind that
// reference the user through an owner/assignee style column.
func (r *ResourceRepo) CountRelated(ctx context.Context, userID string) (map[string]int, error) {
	var names []string
	var exprs []string
	for _, k := range repository.Kinds() {
		var conds []string
		for _, f := range k.UserRefs() {
			if f.Writable {
				conds = append(conds, f.Column+" = $1")
			}
		}
		if len(conds) == 0 {
			continue
		}
		names = append(names, k.Name)
		exprs = append(exprs, fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE %s)", k.Table, strings.Join(conds, " OR ")))
	}

	counts := make([]int64, len(names))
	dest := make([]any, len(names))
	for i := range counts {
		dest[i] = &counts[i]
	}
	if err := r.db.QueryRow(ctx, `SELECT `+strings.Join(exprs, ", "), userID).Scan(dest...); err != nil {
		return nil, translate(err, nil)
	}
	out := make(map[string]int, len(names))
	for i, n := range names {
		out[n] = int(counts[i])
	}
	return out, nil
}

func (r *ResourceRepo) Ping(ctx context.Context) error {
	return translate(r.db.Ping(ctx), nil)
}

func checkRefs(ctx context.Context, q querier, k *repository.Kind, vals models.Entity) error {
	refs := repository.RefIDs(k, vals)
	targets := make([]string, 0, len(refs))
	for t := range refs {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	for _, target := range targets {
		ids := refs[target]
		tk := repository.MustKind(target)
		rows, err := q.Query(ctx, `SELECT id FROM `+tk.Table+` WHERE id = ANY($1)`, ids)
		if err != nil {
			return translate(err, nil)
		}
		found, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return translate(err, nil)
		}
		have := make(map[string]bool, len(found))
		for _, id := range found {
			have[id] = true
		}
		for _, id := range ids {
			if !have[id] {
				return repository.MissingRef(tk.Singular, id)
			}
		}
	}
	return nil
}

// collect reads rows produced by selectList(fields) into entities.
func collect(rows pgx.Rows, fields []*repository.Field) ([]models.Entity, error) {
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]models.Entity, 0, len(maps))
	for _, m := range maps {
		e := make(models.Entity, len(fields))
		for _, f := range fields {
			e[f.Name] = normalize(m[f.Column])
		}
		out = append(out, e)
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

func sortedKeys(e models.Entity) []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}
