package adapter

import "sync"

// DefaultIDAttribute is used when a Mapper leaves IDAttribute empty.
const DefaultIDAttribute = "id"

// Mapper describes one entity collection.
type Mapper struct {
	// Name identifies the collection.
	Name string

	// Kind overrides the backend collection name. Defaults to Name.
	Kind string

	// IDAttribute is the primary key field. Default: "id"
	IDAttribute string

	// RelationFields lists fields that hold relation data and must never reach the store.
	RelationFields []string

	// Relations declares the relations that find can load via Options.With.
	Relations []Relation
}

// ID returns the primary key field name.
func (m *Mapper) ID() string {
	if m.IDAttribute == "" {
		return DefaultIDAttribute
	}
	return m.IDAttribute
}

// KindFor resolves the backend collection name, honouring a per-call override.
func (m *Mapper) KindFor(opts *Options) string {
	if opts != nil && opts.Kind != "" {
		return opts.Kind
	}
	if m.Kind != "" {
		return m.Kind
	}
	return m.Name
}

// Collection returns the store collection descriptor for this mapper.
func (m *Mapper) Collection(opts *Options) Collection {
	return Collection{Kind: m.KindFor(opts), IDAttribute: m.ID()}
}

// Relation looks up a declared relation by its local field.
func (m *Mapper) Relation(local string) (Relation, bool) {
	for _, rel := range m.Relations {
		if rel.LocalField() == local {
			return rel, true
		}
	}
	return nil, false
}

// Registry holds mappers by name and by backend kind.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Mapper
	byKind map[string]*Mapper
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Mapper),
		byKind: make(map[string]*Mapper),
	}
}

// Register adds a mapper to the registry, replacing any mapper with the same name.
func (r *Registry) Register(m *Mapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[m.Name] = m
	r.byKind[m.KindFor(nil)] = m
}

// Lookup returns the mapper registered under name.
func (r *Registry) Lookup(name string) (*Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// ByKind returns the mapper whose backend collection is kind.
func (r *Registry) ByKind(kind string) (*Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byKind[kind]
	return m, ok
}

// Mappers returns every registered mapper.
func (r *Registry) Mappers() []*Mapper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Mapper, 0, len(r.byName))
	for _, m := range r.byName {
		out = append(out, m)
	}
	return out
}
