// Package fallback serves a small fixed dataset per kind while the store is
// unreachable. Every record is labeled "[demo]" and ids are "mock-<kind>-N"
// so the data can never pass for real rows.
package fallback

import (
	"fmt"
	"time"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

const (
	Label     = "[demo]"
	perKind   = 3
	idPattern = "mock-%s-%d"
)

// epoch is the timestamp every mock record carries.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var demoPeople = []struct{ first, last string }{
	{"Ana", "García"},
	{"Luis", "Martínez"},
	{"Sofía", "López"},
}

type Provider struct {
	data map[string][]models.Entity
}

func New() *Provider {
	p := &Provider{data: map[string][]models.Entity{}}
	for _, k := range repository.Kinds() {
		rows := make([]models.Entity, 0, perKind)
		for i := 1; i <= perKind; i++ {
			rows = append(rows, record(k, i))
		}
		p.data[k.Name] = rows
	}
	return p
}

// record builds the i-th mock row of k. Enum fields cycle through their
// values; references stay null since no real row backs them.
func record(k *repository.Kind, i int) models.Entity {
	person := demoPeople[(i-1)%len(demoPeople)]
	e := models.Entity{}
	for _, f := range k.Public() {
		switch f.Type {
		case repository.TypeString:
			e[f.Name] = stringValue(k, f, i, person.first, person.last)
		case repository.TypeEnum:
			e[f.Name] = f.Enum[(i-1)%len(f.Enum)]
		case repository.TypeBool:
			e[f.Name] = true
		case repository.TypeInt:
			e[f.Name] = f.Min + int64(i-1)%(f.Max-f.Min+1)
		case repository.TypeTime:
			e[f.Name] = epoch.AddDate(0, 0, i-1)
		default:
			e[f.Name] = nil
		}
	}
	e["id"] = fmt.Sprintf(idPattern, k.Name, i)
	if k.Name == repository.KindUsers {
		e["lastLogin"] = nil
	}
	return e
}

func stringValue(k *repository.Kind, f *repository.Field, i int, first, last string) string {
	switch f.Name {
	case "email":
		return fmt.Sprintf("demo%d@example.com", i)
	case "firstName":
		return Label + " " + first
	case "lastName":
		return last
	case "title", "name":
		return fmt.Sprintf("%s %s %d", Label, k.Singular, i)
	case "fileUrl":
		return fmt.Sprintf("https://example.com/demo/%s-%d.pdf", k.Singular, i)
	case "version":
		return fmt.Sprintf("1.%d", i-1)
	}
	return Label
}

// List answers q over the fixed dataset with the same filter, order, page
// and projection rules as the real store.
func (p *Provider) List(k *repository.Kind, q repository.Query) ([]models.Entity, int, error) {
	plan, err := repository.Prepare(k, q)
	if err != nil {
		return nil, 0, err
	}
	out, total := repository.Evaluate(plan, p.data[k.Name])
	return out, total, nil
}

func (p *Provider) Get(k *repository.Kind, id string, fields []string) (models.Entity, error) {
	proj, err := repository.Projection(k, fields)
	if err != nil {
		return nil, err
	}
	for _, e := range p.data[k.Name] {
		if e.ID() == id {
			return repository.Project(e, proj), nil
		}
	}
	return nil, k.NotFound()
}
