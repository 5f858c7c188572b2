package repository

import (
	"sort"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

type FieldType int

const (
	TypeString FieldType = iota
	TypeEnum
	TypeBool
	TypeInt
	TypeTime
	TypeRef // weak reference to another kind's id
)

// Field declares one column of a resource kind.
type Field struct {
	Name     string // JSON name
	Column   string
	Type     FieldType
	Required bool
	Secret   bool // never projected, filtered or sorted on
	Writable bool // settable by clients on create/update
	Enum     []string
	Default  any
	Ref      string // target kind for TypeRef
	Min, Max int64  // inclusive bounds for TypeInt when Max > 0
}

func (f *Field) allows(v string) bool {
	for _, e := range f.Enum {
		if e == v {
			return true
		}
	}
	return false
}

// Kind is the schema of one entity collection.
type Kind struct {
	Name      string // plural, used in routes and policy
	Singular  string
	Table     string
	Fields    []Field
	Order     Order // default ordering
	Creatable bool  // false for users: they are created via registration
	Audited   bool  // carries createdBy/updatedBy
}

func (k *Kind) Field(name string) (*Field, bool) {
	for i := range k.Fields {
		if k.Fields[i].Name == name {
			return &k.Fields[i], true
		}
	}
	return nil, false
}

// Public returns every non-secret field, in declaration order.
func (k *Kind) Public() []*Field {
	out := make([]*Field, 0, len(k.Fields))
	for i := range k.Fields {
		if !k.Fields[i].Secret {
			out = append(out, &k.Fields[i])
		}
	}
	return out
}

// UserRefs returns the fields referencing users.
func (k *Kind) UserRefs() []*Field {
	var out []*Field
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Type == TypeRef && f.Ref == KindUsers {
			out = append(out, f)
		}
	}
	return out
}

func (k *Kind) NotFound() error { return notFound(k.Singular) }

const (
	KindUsers     = "users"
	KindEmployees = "employees"
	KindTasks     = "tasks"
	KindRisks     = "risks"
	KindControls  = "controls"
	KindIncidents = "incidents"
	KindPolicies  = "policies"
	KindEvidence  = "evidence"
)

var (
	taskStatuses     = []string{"pending", "in_progress", "completed", "cancelled"}
	priorities       = []string{"low", "medium", "high", "critical"}
	riskStatuses     = []string{"identified", "assessed", "mitigated", "accepted", "closed"}
	controlStatuses  = []string{"not_implemented", "partially_implemented", "implemented", "under_review"}
	controlTypes     = []string{"preventive", "detective", "corrective"}
	incidentStatuses = []string{"open", "investigating", "resolved", "closed"}
	policyStatuses   = []string{"draft", "active", "archived"}
	employeeStatuses = []string{"active", "inactive", "on_leave"}
	evidenceStatuses = []string{"pending", "approved", "rejected"}
)

func str(name, col string, required bool) Field {
	return Field{Name: name, Column: col, Type: TypeString, Required: required, Writable: true}
}

func enum(name, col string, values []string, def string) Field {
	return Field{Name: name, Column: col, Type: TypeEnum, Writable: true, Enum: values, Default: def}
}

func userRef(name, col string) Field {
	return Field{Name: name, Column: col, Type: TypeRef, Ref: KindUsers, Writable: true}
}

func ts(name, col string) Field {
	return Field{Name: name, Column: col, Type: TypeTime, Writable: true}
}

func system(audited bool, fields ...Field) []Field {
	out := []Field{{Name: "id", Column: "id", Type: TypeString}}
	out = append(out, fields...)
	out = append(out,
		Field{Name: "createdAt", Column: "created_at", Type: TypeTime},
		Field{Name: "updatedAt", Column: "updated_at", Type: TypeTime},
	)
	if audited {
		out = append(out,
			Field{Name: "createdBy", Column: "created_by", Type: TypeRef, Ref: KindUsers},
			Field{Name: "updatedBy", Column: "updated_by", Type: TypeRef, Ref: KindUsers},
		)
	}
	return out
}

var kinds = map[string]*Kind{
	KindUsers: {
		Name: KindUsers, Singular: "user", Table: "users",
		Order: Order{Field: "firstName"},
		Fields: system(false,
			Field{Name: "email", Column: "email", Type: TypeString},
			Field{Name: "passwordHash", Column: "password_hash", Type: TypeString, Secret: true},
			str("firstName", "first_name", true),
			str("lastName", "last_name", true),
			Field{Name: "role", Column: "role", Type: TypeEnum, Writable: true, Enum: models.Roles, Required: true},
			Field{Name: "isActive", Column: "is_active", Type: TypeBool, Writable: true},
			Field{Name: "emailVerified", Column: "email_verified", Type: TypeBool, Writable: true},
			Field{Name: "lastLogin", Column: "last_login", Type: TypeTime},
		),
	},
	KindEmployees: {
		Name: KindEmployees, Singular: "employee", Table: "employees", Creatable: true, Audited: true,
		Order: Order{Field: "lastName"},
		Fields: system(true,
			str("firstName", "first_name", true),
			str("lastName", "last_name", true),
			str("email", "email", true),
			str("position", "position", false),
			str("department", "department", false),
			enum("status", "status", employeeStatuses, "active"),
			ts("hireDate", "hire_date"),
			userRef("managerId", "manager_id"),
			userRef("userId", "user_id"),
		),
	},
	KindTasks: {
		Name: KindTasks, Singular: "task", Table: "tasks", Creatable: true, Audited: true,
		Order: Order{Field: "createdAt", Desc: true},
		Fields: system(true,
			str("title", "title", true),
			str("description", "description", false),
			str("category", "category", false),
			enum("status", "status", taskStatuses, "pending"),
			enum("priority", "priority", priorities, "medium"),
			ts("dueDate", "due_date"),
			userRef("assigneeId", "assignee_id"),
		),
	},
	KindRisks: {
		Name: KindRisks, Singular: "risk", Table: "risks", Creatable: true, Audited: true,
		Order: Order{Field: "createdAt", Desc: true},
		Fields: system(true,
			str("title", "title", true),
			str("description", "description", false),
			str("category", "category", false),
			Field{Name: "likelihood", Column: "likelihood", Type: TypeInt, Writable: true, Min: 1, Max: 5, Default: int64(3)},
			Field{Name: "impact", Column: "impact", Type: TypeInt, Writable: true, Min: 1, Max: 5, Default: int64(3)},
			enum("status", "status", riskStatuses, "identified"),
			userRef("ownerId", "owner_id"),
			ts("reviewDate", "review_date"),
		),
	},
	KindControls: {
		Name: KindControls, Singular: "control", Table: "controls", Creatable: true, Audited: true,
		Order: Order{Field: "name"},
		Fields: system(true,
			str("name", "name", true),
			str("description", "description", false),
			str("framework", "framework", false),
			str("frequency", "frequency", false),
			enum("type", "control_type", controlTypes, "preventive"),
			enum("status", "status", controlStatuses, "not_implemented"),
			userRef("ownerId", "owner_id"),
			ts("lastTestedAt", "last_tested_at"),
		),
	},
	KindIncidents: {
		Name: KindIncidents, Singular: "incident", Table: "incidents", Creatable: true, Audited: true,
		Order: Order{Field: "createdAt", Desc: true},
		Fields: system(true,
			str("title", "title", true),
			str("description", "description", false),
			enum("severity", "severity", priorities, "medium"),
			enum("status", "status", incidentStatuses, "open"),
			userRef("reportedBy", "reported_by"),
			userRef("assigneeId", "assignee_id"),
			ts("occurredAt", "occurred_at"),
			ts("resolvedAt", "resolved_at"),
		),
	},
	KindPolicies: {
		Name: KindPolicies, Singular: "policy", Table: "policies", Creatable: true, Audited: true,
		Order: Order{Field: "title"},
		Fields: system(true,
			str("title", "title", true),
			str("content", "content", false),
			str("version", "version", false),
			enum("status", "status", policyStatuses, "draft"),
			userRef("ownerId", "owner_id"),
			ts("effectiveDate", "effective_date"),
			ts("reviewDate", "review_date"),
		),
	},
	KindEvidence: {
		Name: KindEvidence, Singular: "evidence", Table: "evidence", Creatable: true, Audited: true,
		Order: Order{Field: "createdAt", Desc: true},
		Fields: system(true,
			str("title", "title", true),
			str("description", "description", false),
			str("fileUrl", "file_url", false),
			Field{Name: "controlId", Column: "control_id", Type: TypeRef, Ref: KindControls, Writable: true},
			enum("status", "status", evidenceStatuses, "pending"),
			userRef("uploadedBy", "uploaded_by"),
		),
	},
}

// LookupKind resolves a kind by its plural name.
func LookupKind(name string) (*Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// MustKind panics on an unknown kind; for package-level wiring only.
func MustKind(name string) *Kind {
	k, ok := kinds[name]
	if !ok {
		panic("repository: unknown kind " + name)
	}
	return k
}

// Kinds returns every kind sorted by name.
func Kinds() []*Kind {
	out := make([]*Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
