package alarms

import (
	"sort"

	"github.com/marmos91/daserver/pkg/errors"
)

func (m *Model) Category(id CategoryID) (Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return Category{}, errors.NewUnknownReferenceError("category", id.String())
	}
	return copyCategory(c), nil
}

// Categories returns every category ordered by id.
func (m *Model) Categories() []Category {
	m.mu.RLock()
	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, copyCategory(c))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Model) Definition(id DefinitionID) (Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.definitions[id]
	if !ok {
		return Definition{}, errors.NewUnknownReferenceError("condition definition", id.String())
	}
	out := *d
	out.SubConditions = append([]SubCondition(nil), d.SubConditions...)
	return out, nil
}

// Definitions returns every condition definition ordered by id.
func (m *Model) Definitions() []Definition {
	m.mu.RLock()
	out := make([]Definition, 0, len(m.definitions))
	for _, d := range m.definitions {
		c := *d
		c.SubConditions = append([]SubCondition(nil), d.SubConditions...)
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Model) Area(id AreaID) (Area, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == RootArea {
		return Area{
			ID:       RootArea,
			Parent:   RootArea,
			Children: append([]AreaID(nil), m.rootAreas...),
			Sources:  append([]SourceID(nil), m.rootSources...),
		}, nil
	}
	a, ok := m.areas[id]
	if !ok {
		return Area{}, errors.NewUnknownReferenceError("area", id.String())
	}
	return copyArea(a), nil
}

// Areas returns all areas (the implicit root excluded) ordered by id.
func (m *Model) Areas() []Area {
	m.mu.RLock()
	out := make([]Area, 0, len(m.areas))
	for _, a := range m.areas {
		out = append(out, copyArea(a))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChildAreas returns the direct children of id in creation order. RootArea
// lists the top-level areas.
func (m *Model) ChildAreas(id AreaID) ([]Area, error) {
	parent, err := m.Area(id)
	if err != nil {
		return nil, err
	}
	out := make([]Area, 0, len(parent.Children))
	for _, child := range parent.Children {
		a, err := m.Area(child)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AreaPath returns the area names from the top of the tree down to id.
func (m *Model) AreaPath(id AreaID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for cur := id; cur != RootArea; {
		a, ok := m.areas[cur]
		if !ok {
			return nil, errors.NewUnknownReferenceError("area", cur.String())
		}
		names = append([]string{a.Name}, names...)
		cur = a.Parent
	}
	return names, nil
}

func (m *Model) Source(id SourceID) (Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sources[id]
	if !ok {
		return Source{}, errors.NewUnknownReferenceError("source", id.String())
	}
	out := *s
	out.Areas = append([]AreaID(nil), s.Areas...)
	return out, nil
}

// SourcesInArea returns the sources attached directly to an area.
func (m *Model) SourcesInArea(id AreaID) ([]Source, error) {
	a, err := m.Area(id)
	if err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(a.Sources))
	for _, sid := range a.Sources {
		s, err := m.Source(sid)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Model) Condition(id ConditionID) (ConditionState, error) {
	m.mu.RLock()
	c, ok := m.conditions[id]
	m.mu.RUnlock()
	if !ok {
		return ConditionState{}, errors.NewUnknownReferenceError("condition", id.String())
	}
	return c.snapshot(), nil
}

// ConditionFor finds the condition binding src to def.
func (m *Model) ConditionFor(src SourceID, def DefinitionID) (ConditionID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey{src, def}]
	return id, ok
}

// Conditions returns a snapshot of every condition ordered by id.
func (m *Model) Conditions() []ConditionState {
	m.mu.RLock()
	conds := make([]*condition, 0, len(m.conditions))
	for _, c := range m.conditions {
		conds = append(conds, c)
	}
	m.mu.RUnlock()

	return snapshots(conds)
}

func (m *Model) ConditionsForSource(src SourceID) ([]ConditionState, error) {
	m.mu.RLock()
	if _, ok := m.sources[src]; !ok {
		m.mu.RUnlock()
		return nil, errors.NewUnknownReferenceError("source", src.String())
	}
	var conds []*condition
	for _, c := range m.conditions {
		if c.source == src {
			conds = append(conds, c)
		}
	}
	m.mu.RUnlock()

	return snapshots(conds), nil
}

// ConditionsInArea returns the conditions of every source attached directly
// to the area.
func (m *Model) ConditionsInArea(id AreaID) ([]ConditionState, error) {
	a, err := m.Area(id)
	if err != nil {
		return nil, err
	}
	var out []ConditionState
	for _, sid := range a.Sources {
		cs, err := m.ConditionsForSource(sid)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

// Len returns the number of live conditions.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conditions)
}

func (c *condition) snapshot() ConditionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func snapshots(conds []*condition) []ConditionState {
	out := make([]ConditionState, len(conds))
	for i, c := range conds {
		out[i] = c.snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyCategory(c *Category) Category {
	out := *c
	out.Attributes = append([]Attribute(nil), c.Attributes...)
	return out
}

func copyArea(a *Area) Area {
	out := *a
	out.Children = append([]AreaID(nil), a.Children...)
	out.Sources = append([]SourceID(nil), a.Sources...)
	return out
}
