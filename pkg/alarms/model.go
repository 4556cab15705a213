// Package alarms implements the condition model: the catalog of event
// categories, condition definitions, areas and sources, and the live
// condition instances whose transitions are published to a Listener.
//
// The catalog is built with the Define/Add builders and then frozen with
// Seal. Transition is the only way live condition state changes.
package alarms

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/marmos91/daserver/pkg/errors"
	"github.com/marmos91/daserver/pkg/variant"
)

type condition struct {
	source   SourceID
	category CategoryID
	def      DefinitionID

	mu    sync.Mutex
	state ConditionState
}

type pairKey struct {
	source SourceID
	def    DefinitionID
}

// Model is the condition model. Catalog maps are guarded by mu; each live
// condition has its own lock so transitions on different conditions do not
// contend.
type Model struct {
	mu     sync.RWMutex
	sealed bool

	categories  map[CategoryID]*Category
	attributes  map[AttributeID]CategoryID
	definitions map[DefinitionID]*Definition
	areas       map[AreaID]*Area
	rootAreas   []AreaID
	rootSources []SourceID
	sources     map[SourceID]*Source
	conditions  map[ConditionID]*condition
	byPair      map[pairKey]ConditionID
	nextID      ConditionID

	listener Listener
	metrics  Metrics
	now      func() time.Time
}

// Option configures a Model.
type Option func(*Model)

func WithListener(l Listener) Option { return func(m *Model) { m.listener = l } }

func WithMetrics(mt Metrics) Option { return func(m *Model) { m.metrics = mt } }

func WithClock(now func() time.Time) Option { return func(m *Model) { m.now = now } }

func NewModel(opts ...Option) *Model {
	m := &Model{
		categories:  make(map[CategoryID]*Category),
		attributes:  make(map[AttributeID]CategoryID),
		definitions: make(map[DefinitionID]*Definition),
		areas:       make(map[AreaID]*Area),
		sources:     make(map[SourceID]*Source),
		conditions:  make(map[ConditionID]*condition),
		byPair:      make(map[pairKey]ConditionID),
		nextID:      1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seal freezes the catalog. Every later builder call fails with
// AlreadySealed. Sealing twice is a no-op.
func (m *Model) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

func (m *Model) Sealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

// lockForBuild takes the write lock and checks the seal. On success the
// caller owns m.mu.
func (m *Model) lockForBuild(op string) error {
	m.mu.Lock()
	if m.sealed {
		m.mu.Unlock()
		err := errors.NewAlreadySealedError(op)
		m.reject(op, err)
		return err
	}
	return nil
}

func (m *Model) reject(op string, err error) {
	if m.metrics != nil && err != nil {
		m.metrics.RecordRejected(op, err)
	}
}

// DefineCategory adds an event category with no attributes.
func (m *Model) DefineCategory(id CategoryID, name string, kind EventKind) (err error) {
	if err := m.lockForBuild("DefineCategory"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	defer func() { m.reject("DefineCategory", err) }()

	if kind < KindSimple || kind > KindCondition {
		return errors.NewInvalidArgumentError("invalid event kind " + kind.String())
	}
	if _, ok := m.categories[id]; ok {
		return errors.NewDuplicateKeyError("category", id.String())
	}
	m.categories[id] = &Category{ID: id, Name: name, Kind: kind}
	return nil
}

// AddAttribute appends an attribute to a category's ordered schema.
// Attribute ids are unique across all categories. A category that already
// has live conditions cannot grow its schema.
func (m *Model) AddAttribute(cat CategoryID, id AttributeID, name string, typ variant.Type) (err error) {
	if err := m.lockForBuild("AddAttribute"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	defer func() { m.reject("AddAttribute", err) }()

	c, ok := m.categories[cat]
	if !ok {
		return errors.NewUnknownReferenceError("category", cat.String())
	}
	if _, ok := m.attributes[id]; ok {
		return errors.NewDuplicateKeyError("attribute", id.String())
	}
	if !typ.Valid() {
		return errors.NewInvalidTypeError("unsupported attribute type "+typ.String(), id.String())
	}
	for _, cond := range m.conditions {
		if cond.category == cat {
			return errors.NewInvalidArgumentError(fmt.Sprintf("category %s already has live conditions", cat))
		}
	}

	c.Attributes = append(c.Attributes, Attribute{ID: id, Name: name, Type: typ})
	m.attributes[id] = cat
	return nil
}

// DefineSingleStateCondition adds a definition whose state is simply
// active or inactive.
func (m *Model) DefineSingleStateCondition(id DefinitionID, cat CategoryID, name, expression string, severity uint32, message string, ackRequired bool) error {
	return m.defineCondition("DefineSingleStateCondition", &Definition{
		ID:          id,
		Category:    cat,
		Name:        name,
		Kind:        SingleState,
		Expression:  expression,
		Severity:    severity,
		Message:     message,
		AckRequired: ackRequired,
	})
}

// DefineMultiStateCondition adds a definition whose active states are the
// sub-conditions added later with AddSubCondition.
func (m *Model) DefineMultiStateCondition(id DefinitionID, cat CategoryID, name string) error {
	return m.defineCondition("DefineMultiStateCondition", &Definition{
		ID:       id,
		Category: cat,
		Name:     name,
		Kind:     MultiState,
	})
}

func (m *Model) defineCondition(op string, def *Definition) (err error) {
	if err := m.lockForBuild(op); err != nil {
		return err
	}
	defer m.mu.Unlock()
	defer func() { m.reject(op, err) }()

	c, ok := m.categories[def.Category]
	if !ok {
		return errors.NewUnknownReferenceError("category", def.Category.String())
	}
	if c.Kind != KindCondition {
		return errors.NewInvalidArgumentError(fmt.Sprintf("category %s is a %s category", c.ID, c.Kind))
	}
	if _, ok := m.definitions[def.ID]; ok {
		return errors.NewDuplicateKeyError("condition definition", def.ID.String())
	}
	m.definitions[def.ID] = def
	return nil
}

// AddSubCondition appends a sub-condition to a multi-state definition.
// Sub-condition ids are unique within their definition and never zero.
func (m *Model) AddSubCondition(def DefinitionID, sc SubCondition) (err error) {
	if err := m.lockForBuild("AddSubCondition"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	defer func() { m.reject("AddSubCondition", err) }()

	d, ok := m.definitions[def]
	if !ok {
		return errors.NewUnknownReferenceError("condition definition", def.String())
	}
	if d.Kind != MultiState {
		return errors.NewInvalidArgumentError(fmt.Sprintf("definition %s is single-state", def))
	}
	if sc.ID == NoSubCondition {
		return errors.NewInvalidArgumentError("sub-condition id 0 is reserved")
	}
	if _, dup := d.subCondition(sc.ID); dup {
		return errors.NewDuplicateKeyError("sub-condition", fmt.Sprintf("%s/%s", def, sc.ID))
	}
	d.SubConditions = append(d.SubConditions, sc)
	return nil
}

// AddArea adds a child of parent, which is RootArea or an existing area.
// Parents must exist first, which keeps the tree acyclic.
func (m *Model) AddArea(parent, id AreaID, name string) (err error) {
	if err := m.lockForBuild("AddArea"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	defer func() { m.reject("AddArea", err) }()

	if id == RootArea || id == UnspecifiedArea {
		return errors.NewInvalidArgumentError(fmt.Sprintf("area id %s is reserved", id))
	}
	if _, ok := m.areas[id]; ok {
		return errors.NewDuplicateKeyError("area", id.String())
	}
	if parent == RootArea {
		m.rootAreas = append(m.rootAreas, id)
	} else {
		p, ok := m.areas[parent]
		if !ok {
			return errors.NewUnknownReferenceError("area", parent.String())
		}
		p.Children = append(p.Children, id)
	}
	m.areas[id] = &Area{ID: id, Parent: parent, Name: name}
	return nil
}

// AddSource creates a source in area. Shared sources may later be attached
// to further areas with AttachExistingSource.
func (m *Model) AddSource(areaID AreaID, id SourceID, name string, shared bool) (err error) {
	if err := m.lockForBuild("AddSource"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	defer func() { m.reject("AddSource", err) }()

	if _, ok := m.sources[id]; ok {
		return errors.NewDuplicateKeyError("source", id.String())
	}
	if err := m.linkSourceLocked(areaID, id); err != nil {
		return err
	}
	m.sources[id] = &Source{ID: id, Name: name, Shared: shared, Areas: []AreaID{areaID}}
	return nil
}

// AttachExistingSource adds a shared source to another area. Conditions of
// the source are the same instances whichever area they are reached from.
func (m *Model) AttachExistingSource(areaID AreaID, id SourceID) (err error) {
	if err := m.lockForBuild("AttachExistingSource"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	defer func() { m.reject("AttachExistingSource", err) }()

	src, ok := m.sources[id]
	if !ok {
		return errors.NewUnknownReferenceError("source", id.String())
	}
	if !src.Shared {
		return errors.NewInvalidArgumentError(fmt.Sprintf("source %s is not shareable", id))
	}
	for _, a := range src.Areas {
		if a == areaID {
			return errors.NewDuplicateKeyError("source attachment", fmt.Sprintf("%s/%s", areaID, id))
		}
	}
	if err := m.linkSourceLocked(areaID, id); err != nil {
		return err
	}
	src.Areas = append(src.Areas, areaID)
	return nil
}

func (m *Model) linkSourceLocked(areaID AreaID, id SourceID) error {
	if areaID == RootArea {
		m.rootSources = append(m.rootSources, id)
		return nil
	}
	a, ok := m.areas[areaID]
	if !ok {
		return errors.NewUnknownReferenceError("area", areaID.String())
	}
	a.Sources = append(a.Sources, id)
	return nil
}

// InstantiateOption configures Instantiate.
type InstantiateOption func(*ConditionID)

// WithConditionID pins the id of the new condition instead of allocating one.
func WithConditionID(id ConditionID) InstantiateOption {
	return func(c *ConditionID) { *c = id }
}

// Instantiate creates an inactive condition binding source to definition,
// with default severity, message and ack flag and a zeroed attribute vector.
// A source has at most one condition per definition.
func (m *Model) Instantiate(src SourceID, def DefinitionID, opts ...InstantiateOption) (_ ConditionID, err error) {
	if err := m.lockForBuild("Instantiate"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	defer func() { m.reject("Instantiate", err) }()

	if _, ok := m.sources[src]; !ok {
		return 0, errors.NewUnknownReferenceError("source", src.String())
	}
	d, ok := m.definitions[def]
	if !ok {
		return 0, errors.NewUnknownReferenceError("condition definition", def.String())
	}
	if _, dup := m.byPair[pairKey{src, def}]; dup {
		return 0, errors.NewDuplicateKeyError("condition", fmt.Sprintf("%s/%s", src, def))
	}

	var id ConditionID
	for _, opt := range opts {
		opt(&id)
	}
	if id == 0 {
		if id, err = m.allocateIDLocked(); err != nil {
			return 0, err
		}
	} else if _, dup := m.conditions[id]; dup {
		return 0, errors.NewDuplicateKeyError("condition", id.String())
	}

	schema := m.categories[d.Category].Attributes
	attrs := make([]variant.Value, len(schema))
	for i, a := range schema {
		attrs[i] = variant.Zero(a.Type)
	}

	m.conditions[id] = &condition{source: src, category: d.Category, def: def, state: ConditionState{
		ID:          id,
		Source:      src,
		Definition:  def,
		Category:    d.Category,
		Severity:    d.Severity,
		Message:     d.Message,
		AckRequired: d.AckRequired,
		Attributes:  attrs,
		Timestamp:   m.now(),
	}}
	m.byPair[pairKey{src, def}] = id
	return id, nil
}

func (m *Model) allocateIDLocked() (ConditionID, error) {
	for tries := uint64(0); tries < math.MaxUint32; tries++ {
		id := m.nextID
		m.nextID++
		if m.nextID == 0 {
			m.nextID = 1
		}
		if _, used := m.conditions[id]; !used {
			return id, nil
		}
	}
	return 0, errors.NewResourceExhaustedError("condition id space exhausted")
}
