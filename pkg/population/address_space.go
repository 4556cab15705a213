package population

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/variant"
)

// Well-known item paths.
const (
	ItemNumberItems     = "SimulatedData.NumberItems"
	ItemRamp            = "SimulatedData.Ramp"
	ItemSine            = "SimulatedData.Sine"
	ItemRandom          = "SimulatedData.Random"
	ItemRequestShutdown = "Commands.RequestShutdown"

	ItemSpecialEU         = "CTT.SpecialItems.WithAnalogEUInfo"
	ItemSpecialEU2        = "CTT.SpecialItems.WithAnalogEUInfo2"
	ItemSpecialProperties = "CTT.SpecialItems.WithVendorSpecificProperties"
)

// ArrayLength is the element count of every sample array item.
const ArrayLength = 4

// TypeEntry names one sample data type.
type TypeEntry struct {
	Name string
	Type variant.Type
}

// SampleTypes is the per-type leaf set created under every IO branch.
var SampleTypes = []TypeEntry{
	{"Boolean", variant.TypeBool},
	{"Short", variant.TypeI2},
	{"Integer", variant.TypeI4},
	{"SingleFloat", variant.TypeR4},
	{"DoubleFloat", variant.TypeR8},
	{"Date", variant.TypeDate},
	{"String", variant.TypeString},
	{"Byte", variant.TypeUI1},
	{"Character", variant.TypeI1},
	{"Word", variant.TypeUI2},
	{"DoubleWord", variant.TypeUI4},
	{"Currency", variant.TypeCurrency},
}

// IOBranch is a sub-tree with a fixed access mode.
type IOBranch struct {
	Prefix string
	Access items.AccessMode
}

var IOBranches = []IOBranch{
	{"In.", items.ReadOnly},
	{"Out.", items.WriteOnly},
	{"InOut.", items.ReadWrite},
}

// Largest OLE date used for sample arrays (12/31/2099).
const maxSampleDate = 73050

// SampleValue returns the fixed sample of a scalar type, or a
// pseudo-random ArrayLength array when t is an array type.
func SampleValue(t variant.Type, rng *rand.Rand) variant.Value {
	if t.IsArray() {
		return sampleArray(t.Elem(), rng)
	}
	switch t {
	case variant.TypeI1:
		return variant.Must(int8(76))
	case variant.TypeUI1:
		return variant.Must(uint8(23))
	case variant.TypeI2:
		return variant.Must(int16(345))
	case variant.TypeUI2:
		return variant.Must(uint16(39874))
	case variant.TypeI4:
		return variant.Must(int32(20196))
	case variant.TypeUI4:
		return variant.Must(uint32(4230498))
	case variant.TypeR4:
		return variant.Must(float32(8.123242))
	case variant.TypeR8:
		return variant.Must(83289.48243)
	case variant.TypeCurrency:
		return variant.Must(variant.Currency(198000))
	case variant.TypeDate:
		// noon, January 1, 1900
		return variant.Must(variant.DateFromOLE(2.5))
	case variant.TypeBool:
		return variant.Must(false)
	case variant.TypeString:
		return variant.Must("-- It's a nice day --")
	default:
		return variant.Zero(t)
	}
}

func sampleArray(t variant.Type, rng *rand.Rand) variant.Value {
	n := ArrayLength
	draw := func() int32 { return rng.Int31n(32768) }
	switch t {
	case variant.TypeBool:
		s := make([]bool, n)
		for i := range s {
			s[i] = i&1 == 1
		}
		return variant.Must(s)
	case variant.TypeI1:
		s := make([]int8, n)
		for i := range s {
			s[i] = int8(draw())
		}
		return variant.Must(s)
	case variant.TypeI2:
		s := make([]int16, n)
		for i := range s {
			s[i] = int16(draw())
		}
		return variant.Must(s)
	case variant.TypeI4:
		s := make([]int32, n)
		for i := range s {
			s[i] = draw()
		}
		return variant.Must(s)
	case variant.TypeUI1:
		s := make([]uint8, n)
		for i := range s {
			s[i] = uint8(draw())
		}
		return variant.Must(s)
	case variant.TypeUI2:
		s := make([]uint16, n)
		for i := range s {
			s[i] = uint16(draw())
		}
		return variant.Must(s)
	case variant.TypeUI4:
		s := make([]uint32, n)
		for i := range s {
			s[i] = uint32(draw())
		}
		return variant.Must(s)
	case variant.TypeR4:
		s := make([]float32, n)
		for i := range s {
			s[i] = float32(draw())
		}
		return variant.Must(s)
	case variant.TypeR8:
		s := make([]float64, n)
		for i := range s {
			s[i] = float64(draw())
		}
		return variant.Must(s)
	case variant.TypeCurrency:
		s := make([]variant.Currency, n)
		for i := range s {
			s[i] = variant.Currency(draw())
		}
		return variant.Must(s)
	case variant.TypeDate:
		s := make([]time.Time, n)
		for i := range s {
			s[i] = variant.DateFromOLE(float64(draw() & maxSampleDate))
		}
		return variant.Must(s)
	case variant.TypeString:
		s := make([]string, n)
		for i := range s {
			s[i] = fmt.Sprintf("This is string #%d", i+1)
		}
		return variant.Must(s)
	default:
		return variant.Zero(variant.ArrayOf(t))
	}
}

func (p *builder) addItem(path string, access items.AccessMode, v variant.Value, opts ...items.AddOption) error {
	if _, err := p.target.Store.Add(path, access, v, opts...); err != nil {
		return fmt.Errorf("add item %s: %w", path, err)
	}
	return nil
}

// addTypeSet creates one item per IO branch and sample type under prefix.
func (p *builder) addTypeSet(prefix string, arrays bool) error {
	for _, io := range IOBranches {
		for _, st := range SampleTypes {
			path := prefix + io.Prefix + st.Name
			t := st.Type
			if arrays {
				path += "[]"
				t = variant.ArrayOf(t)
			}
			if err := p.addItem(path, io.Access, SampleValue(t, p.rng)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *builder) addSimulatedItems(_ context.Context) error {
	for _, it := range []struct {
		path    string
		access  items.AccessMode
		initial variant.Value
	}{
		{ItemNumberItems, items.ReadOnly, variant.Must(int32(0))},
		{ItemRamp, items.ReadOnly, variant.Must(int32(0))},
		{ItemSine, items.ReadOnly, variant.Must(0.0)},
		{ItemRandom, items.ReadOnly, variant.Must(int32(0))},
		{ItemRequestShutdown, items.ReadWrite, variant.Must(" ")},
	} {
		if err := p.addItem(it.path, it.access, it.initial); err != nil {
			return err
		}
	}
	return nil
}

func (p *builder) addConformanceItems(_ context.Context) error {
	if err := p.addTypeSet("CTT.SimpleTypes.", false); err != nil {
		return err
	}
	if err := p.addTypeSet("CTT.Arrays.", true); err != nil {
		return err
	}

	byte23 := SampleValue(variant.TypeUI1, p.rng)
	if err := p.addItem(ItemSpecialEU, items.ReadWrite, byte23, items.WithEURange(40.86, 92.67)); err != nil {
		return err
	}
	if err := p.addItem(ItemSpecialEU2, items.ReadWrite, byte23, items.WithEURange(12.50, 27.90)); err != nil {
		return err
	}
	return p.addItem(ItemSpecialProperties, items.ReadWrite, byte23)
}

func (p *builder) addMassItems(ctx context.Context) error {
	loops := p.cfg.MassItemLoops
	if loops <= 0 {
		return nil
	}

	prefix := func(kind string, y int) string {
		if loops == 1 {
			return "MassItems." + kind + "."
		}
		return fmt.Sprintf("MassItems.%s[%d].", kind, y)
	}

	for y := 0; y < loops; y++ {
		if err := p.addTypeSet(prefix("SimpleTypes", y), false); err != nil {
			return err
		}
	}

	for y := 0; y < loops; y++ {
		if err := p.addTypeSet(prefix("Arrays", y), true); err != nil {
			return err
		}
		if p.cfg.BatchDelay <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Mass item creation interrupted", "loop", y, logger.Count(p.target.Store.Count()))
			return ctx.Err()
		case <-time.After(p.cfg.BatchDelay):
		}
	}
	return nil
}
