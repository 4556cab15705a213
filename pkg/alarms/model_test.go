package alarms

import (
	"sync"
	"testing"

	"github.com/marmos91/daserver/pkg/errors"
	"github.com/marmos91/daserver/pkg/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	catLevel   CategoryID = 0x300
	catDevFail CategoryID = 0x100
	catConfig  CategoryID = 0x200

	attrValue    AttributeID = 0x400
	attrCode     AttributeID = 0x401
	attrDevice   AttributeID = 0x402
	attrPrevious AttributeID = 0x403

	defTank DefinitionID = 0x502
	defRamp DefinitionID = 0x500

	subLoLo SubConditionID = 0x550
	subLo   SubConditionID = 0x551
	subHi   SubConditionID = 0x552
	subHiHi SubConditionID = 0x553

	areaNorth AreaID = 0x600
	areaDev1  AreaID = 0x601
	areaSouth AreaID = 0x602

	srcTank   SourceID = 0x705
	srcShared SourceID = 0x709
	srcNet    SourceID = 0x701
)

type recorder struct {
	mu     sync.Mutex
	states []ConditionState
	events []Event
}

func (r *recorder) ConditionChanged(s ConditionState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) EventRaised(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// newFixture builds a small catalog: a level category with one i4
// attribute, the tank and ramp definitions, two plant areas and a shared
// source.
func newFixture(t *testing.T) (*Model, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewModel(WithListener(rec))

	require.NoError(t, m.DefineCategory(catLevel, "Level", KindCondition))
	require.NoError(t, m.DefineCategory(catDevFail, "Device Failure", KindSimple))
	require.NoError(t, m.DefineCategory(catConfig, "System Configuration", KindTracking))
	require.NoError(t, m.AddAttribute(catLevel, attrValue, "Current Value", variant.TypeI4))
	require.NoError(t, m.AddAttribute(catDevFail, attrCode, "Error Code", variant.TypeI4))
	require.NoError(t, m.AddAttribute(catDevFail, attrDevice, "Device Name", variant.TypeString))

	require.NoError(t, m.DefineSingleStateCondition(defTank, catLevel, "Tank Overflow", "level > 80", 100, "Overflow", true))
	require.NoError(t, m.DefineMultiStateCondition(defRamp, catLevel, "Ramp Level"))
	for _, sc := range []SubCondition{
		{ID: subLoLo, Name: "LO_LO", Expression: "Ramp < 15", Severity: 400, Message: "Low Low Alarm"},
		{ID: subLo, Name: "LO", Expression: "Ramp < 25", Severity: 100, Message: "Low Alarm"},
		{ID: subHi, Name: "HI", Expression: "Ramp > 75", Severity: 100, Message: "High Alarm"},
		{ID: subHiHi, Name: "HI_HI", Expression: "Ramp > 85", Severity: 400, Message: "High High Alarm"},
	} {
		require.NoError(t, m.AddSubCondition(defRamp, sc))
	}

	require.NoError(t, m.AddArea(RootArea, areaNorth, "PlantNorth"))
	require.NoError(t, m.AddArea(areaNorth, areaDev1, "Device1"))
	require.NoError(t, m.AddArea(RootArea, areaSouth, "PlantSouth"))

	require.NoError(t, m.AddSource(RootArea, srcNet, "Network Adapter", false))
	require.NoError(t, m.AddSource(areaDev1, srcTank, "Tank 1", false))
	require.NoError(t, m.AddSource(RootArea, srcShared, "Multiple Used Source", true))
	require.NoError(t, m.AttachExistingSource(areaDev1, srcShared))
	require.NoError(t, m.AttachExistingSource(areaSouth, srcShared))
	return m, rec
}

func TestBuilderDuplicates(t *testing.T) {
	m, _ := newFixture(t)

	assert.True(t, errors.IsDuplicateKeyError(m.DefineCategory(catLevel, "again", KindSimple)))
	assert.True(t, errors.IsDuplicateKeyError(m.AddAttribute(catDevFail, attrValue, "x", variant.TypeI4)))
	assert.True(t, errors.IsDuplicateKeyError(m.DefineMultiStateCondition(defRamp, catLevel, "x")))
	assert.True(t, errors.IsDuplicateKeyError(m.AddSubCondition(defRamp, SubCondition{ID: subLo})))
	assert.True(t, errors.IsDuplicateKeyError(m.AddArea(RootArea, areaNorth, "x")))
	assert.True(t, errors.IsDuplicateKeyError(m.AddSource(RootArea, srcTank, "x", false)))
	assert.True(t, errors.IsDuplicateKeyError(m.AttachExistingSource(areaSouth, srcShared)))
}

func TestBuilderUnknownReferences(t *testing.T) {
	m, _ := newFixture(t)

	assert.True(t, errors.IsUnknownReferenceError(m.AddAttribute(0x999, 0x499, "x", variant.TypeI4)))
	assert.True(t, errors.IsUnknownReferenceError(m.DefineSingleStateCondition(0x599, 0x999, "x", "", 1, "", false)))
	assert.True(t, errors.IsUnknownReferenceError(m.AddSubCondition(0x599, SubCondition{ID: 1})))
	assert.True(t, errors.IsUnknownReferenceError(m.AddArea(0x699, 0x698, "x")))
	assert.True(t, errors.IsUnknownReferenceError(m.AddSource(0x699, 0x799, "x", false)))
	assert.True(t, errors.IsUnknownReferenceError(m.AttachExistingSource(areaSouth, 0x799)))

	_, err := m.Instantiate(0x799, defTank)
	assert.True(t, errors.IsUnknownReferenceError(err))
	_, err = m.Instantiate(srcTank, 0x599)
	assert.True(t, errors.IsUnknownReferenceError(err))
}

func TestBuilderInvalidArguments(t *testing.T) {
	m, _ := newFixture(t)

	invalid := func(err error) bool { return errors.IsCode(err, errors.ErrInvalidArgument) }
	assert.True(t, invalid(m.DefineSingleStateCondition(0x599, catDevFail, "x", "", 1, "", false)), "simple category")
	assert.True(t, invalid(m.AddSubCondition(defTank, SubCondition{ID: 7})), "single-state definition")
	assert.True(t, invalid(m.AddSubCondition(defRamp, SubCondition{ID: NoSubCondition})))
	assert.True(t, invalid(m.AddArea(RootArea, RootArea, "x")))
	assert.True(t, invalid(m.AddArea(RootArea, UnspecifiedArea, "x")))
	assert.True(t, invalid(m.AttachExistingSource(areaSouth, srcTank)), "not shareable")
	assert.True(t, invalid(m.DefineCategory(0x999, "x", EventKind(9))))
	assert.True(t, errors.IsInvalidTypeError(m.AddAttribute(catConfig, 0x499, "x", variant.TypeEmpty)))
}

func TestSchemaFrozenOnceConditionsExist(t *testing.T) {
	m, _ := newFixture(t)
	_, err := m.Instantiate(srcTank, defTank)
	require.NoError(t, err)

	err = m.AddAttribute(catLevel, 0x4ff, "Late", variant.TypeI4)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidArgument))
}

func TestSealRejectsEveryBuilder(t *testing.T) {
	m, _ := newFixture(t)
	m.Seal()
	m.Seal()
	assert.True(t, m.Sealed())

	_, instErr := m.Instantiate(srcTank, defTank)
	for name, err := range map[string]error{
		"DefineCategory":       m.DefineCategory(0x999, "x", KindSimple),
		"AddAttribute":         m.AddAttribute(catConfig, 0x499, "x", variant.TypeI4),
		"DefineSingleState":    m.DefineSingleStateCondition(0x599, catLevel, "x", "", 1, "", false),
		"DefineMultiState":     m.DefineMultiStateCondition(0x598, catLevel, "x"),
		"AddSubCondition":      m.AddSubCondition(defRamp, SubCondition{ID: 9}),
		"AddArea":              m.AddArea(RootArea, 0x699, "x"),
		"AddSource":            m.AddSource(RootArea, 0x799, "x", false),
		"AttachExistingSource": m.AttachExistingSource(areaNorth, srcShared),
		"Instantiate":          instErr,
	} {
		assert.True(t, errors.IsAlreadySealedError(err), name)
	}
}

func TestInstantiateDefaults(t *testing.T) {
	m, rec := newFixture(t)

	id, err := m.Instantiate(srcTank, defTank, WithConditionID(0x800))
	require.NoError(t, err)
	assert.Equal(t, ConditionID(0x800), id)

	st, err := m.Condition(id)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, uint32(100), st.Severity)
	assert.Equal(t, "Overflow", st.Message)
	assert.True(t, st.AckRequired)
	assert.Equal(t, catLevel, st.Category)
	require.Len(t, st.Attributes, 1)
	assert.Equal(t, int32(0), st.Attributes[0].Interface())
	assert.Zero(t, st.Sequence)
	assert.Zero(t, rec.Len(), "instantiation publishes nothing")

	_, err = m.Instantiate(srcShared, defTank, WithConditionID(0x800))
	assert.True(t, errors.IsDuplicateKeyError(err), "pinned id reused")

	_, err = m.Instantiate(srcTank, defTank)
	assert.True(t, errors.IsDuplicateKeyError(err), "one condition per source and definition")

	auto, err := m.Instantiate(srcTank, defRamp)
	require.NoError(t, err)
	assert.NotEqual(t, id, auto)

	found, ok := m.ConditionFor(srcTank, defRamp)
	assert.True(t, ok)
	assert.Equal(t, auto, found)
}

func TestSharedSourceConditionsMatchAcrossAreas(t *testing.T) {
	m, _ := newFixture(t)
	id, err := m.Instantiate(srcShared, defTank)
	require.NoError(t, err)
	_, err = m.Transition(id, Transition{Active: true, Attributes: []variant.Value{variant.Must(int32(90))}})
	require.NoError(t, err)

	viaDev1, err := m.ConditionsInArea(areaDev1)
	require.NoError(t, err)
	viaSouth, err := m.ConditionsInArea(areaSouth)
	require.NoError(t, err)
	viaRoot, err := m.ConditionsInArea(RootArea)
	require.NoError(t, err)

	pick := func(cs []ConditionState) ConditionState {
		for _, c := range cs {
			if c.ID == id {
				return c
			}
		}
		t.Fatalf("condition %s not found", id)
		return ConditionState{}
	}
	assert.Equal(t, pick(viaDev1), pick(viaSouth))
	assert.Equal(t, pick(viaDev1), pick(viaRoot))
	assert.True(t, pick(viaSouth).Active)

	src, err := m.Source(srcShared)
	require.NoError(t, err)
	assert.ElementsMatch(t, []AreaID{RootArea, areaDev1, areaSouth}, src.Areas)
}

func TestAreaQueries(t *testing.T) {
	m, _ := newFixture(t)

	path, err := m.AreaPath(areaDev1)
	require.NoError(t, err)
	assert.Equal(t, []string{"PlantNorth", "Device1"}, path)

	root, err := m.Area(RootArea)
	require.NoError(t, err)
	assert.Equal(t, []AreaID{areaNorth, areaSouth}, root.Children)

	srcs, err := m.SourcesInArea(areaDev1)
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.Equal(t, srcTank, srcs[0].ID)

	top, err := m.ChildAreas(RootArea)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "PlantNorth", top[0].Name)
	kids, err := m.ChildAreas(areaNorth)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, areaDev1, kids[0].ID)
	_, err = m.ChildAreas(0x6ff)
	assert.True(t, errors.IsUnknownReferenceError(err))

	_, err = m.AreaPath(0x6ff)
	assert.True(t, errors.IsUnknownReferenceError(err))

	assert.Len(t, m.Areas(), 3)
	assert.Len(t, m.Categories(), 3)
	assert.Len(t, m.Definitions(), 2)

	def, err := m.Definition(defRamp)
	require.NoError(t, err)
	assert.Len(t, def.SubConditions, 4)
	assert.Equal(t, MultiState, def.Kind)
}
