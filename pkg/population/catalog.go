package population

import (
	"context"
	"fmt"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/variant"
)

// Event categories.
const (
	CatDeviceFailure   alarms.CategoryID = 0x100
	CatSystemMessage   alarms.CategoryID = 0x101
	CatSystemConfig    alarms.CategoryID = 0x200
	CatAdvancedControl alarms.CategoryID = 0x201
	CatLevel           alarms.CategoryID = 0x300
	CatSystemFailure   alarms.CategoryID = 0x301
)

// Vendor attributes.
const (
	AttrLevelCurrentValue       alarms.AttributeID = 0x400
	AttrDeviceFailureErrorCode  alarms.AttributeID = 0x401
	AttrDeviceFailureDeviceName alarms.AttributeID = 0x402
	AttrSysConfigPrevValue      alarms.AttributeID = 0x403
	AttrSysConfigNewValue       alarms.AttributeID = 0x404
	AttrAdvControlPrevValue     alarms.AttributeID = 0x405
	AttrAdvControlNewValue      alarms.AttributeID = 0x406
)

// Condition definitions.
const (
	DefLevelRamp          alarms.DefinitionID = 0x500
	DefLevelFurnace       alarms.DefinitionID = 0x501
	DefHighLevelTank      alarms.DefinitionID = 0x502
	DefHighLevelHeating   alarms.DefinitionID = 0x503
	DefSysFailTemperature alarms.DefinitionID = 0x504
	DefSysFailHumidity    alarms.DefinitionID = 0x505
)

// Sub-conditions.
const (
	SubRampLowLow   alarms.SubConditionID = 0x550
	SubRampLow      alarms.SubConditionID = 0x551
	SubRampHigh     alarms.SubConditionID = 0x552
	SubRampHighHigh alarms.SubConditionID = 0x553
	SubFurnaceLow   alarms.SubConditionID = 0x554
	SubFurnaceHigh  alarms.SubConditionID = 0x555
)

// Areas.
const (
	AreaNorth        alarms.AreaID = 0x600
	AreaNorthDevice1 alarms.AreaID = 0x601
	AreaSouth        alarms.AreaID = 0x602
	AreaSouthDevice1 alarms.AreaID = 0x603
)

// Sources.
const (
	SrcSystem         alarms.SourceID = 0x700
	SrcNetworkAdapter alarms.SourceID = 0x701
	SrcSerialPort     alarms.SourceID = 0x702
	SrcValve          alarms.SourceID = 0x703
	SrcMotor          alarms.SourceID = 0x704
	SrcTank1          alarms.SourceID = 0x705
	SrcTank2          alarms.SourceID = 0x706
	SrcHeating1       alarms.SourceID = 0x707
	SrcHeating2       alarms.SourceID = 0x708
	SrcMultiple       alarms.SourceID = 0x709
)

// Conditions.
const (
	CondTank1Overflow   alarms.ConditionID = 0x800
	CondTank2Overflow   alarms.ConditionID = 0x801
	CondHeating1ExcTemp alarms.ConditionID = 0x802
	CondHeating2ExcTemp alarms.ConditionID = 0x803
	CondWaterLevel      alarms.ConditionID = 0x804
)

// NetworkDownCode is the error code attribute of the simulated device
// failure (WSAENETDOWN).
const NetworkDownCode int32 = 10050

func defineCategories(_ context.Context, t *Target) error {
	cats := []struct {
		id   alarms.CategoryID
		name string
		kind alarms.EventKind
	}{
		{CatDeviceFailure, "Device Failure", alarms.KindSimple},
		{CatSystemMessage, "System Message", alarms.KindSimple},
		{CatSystemConfig, "System Configuration", alarms.KindTracking},
		{CatAdvancedControl, "Advanced Control", alarms.KindTracking},
		{CatLevel, "Level", alarms.KindCondition},
		{CatSystemFailure, "System Failure", alarms.KindCondition},
	}
	for _, c := range cats {
		if err := t.Model.DefineCategory(c.id, c.name, c.kind); err != nil {
			return err
		}
	}
	return nil
}

func addAttributes(_ context.Context, t *Target) error {
	attrs := []struct {
		cat  alarms.CategoryID
		id   alarms.AttributeID
		name string
		typ  variant.Type
	}{
		{CatLevel, AttrLevelCurrentValue, "Current Value", variant.TypeI4},
		{CatDeviceFailure, AttrDeviceFailureErrorCode, "Error Code", variant.TypeI4},
		{CatDeviceFailure, AttrDeviceFailureDeviceName, "Device Name", variant.TypeString},
		{CatSystemConfig, AttrSysConfigPrevValue, "Prev Value", variant.TypeI4},
		{CatSystemConfig, AttrSysConfigNewValue, "New Value", variant.TypeI4},
		{CatAdvancedControl, AttrAdvControlPrevValue, "Prev Value", variant.TypeI4},
		{CatAdvancedControl, AttrAdvControlNewValue, "New Value", variant.TypeI4},
	}
	for _, a := range attrs {
		if err := t.Model.AddAttribute(a.cat, a.id, a.name, a.typ); err != nil {
			return err
		}
	}
	return nil
}

func defineConditions(_ context.Context, t *Target) error {
	single := []struct {
		id       alarms.DefinitionID
		cat      alarms.CategoryID
		name     string
		expr     string
		severity uint32
		message  string
		ack      bool
	}{
		{DefSysFailTemperature, CatSystemFailure, "SYSTEM_FAILURE Temperature", "temp > 100°C", 100, "Excess Temperature", false},
		{DefSysFailHumidity, CatSystemFailure, "SYSTEM_FAILURE Humidity", "humidity > 80%", 100, "Humidity too high", false},
		{DefHighLevelTank, CatLevel, "HI Tank", "level > 80", 100, "Overflow", true},
		{DefHighLevelHeating, CatLevel, "HI Heating Temperature", "temp > 35", 100, "Excess Temperature", false},
	}
	for _, d := range single {
		if err := t.Model.DefineSingleStateCondition(d.id, d.cat, d.name, d.expr, d.severity, d.message, d.ack); err != nil {
			return err
		}
	}
	if err := t.Model.DefineMultiStateCondition(DefLevelRamp, CatLevel, "PVLEVEL Ramp"); err != nil {
		return err
	}
	return t.Model.DefineMultiStateCondition(DefLevelFurnace, CatLevel, "PVLEVEL Furnace")
}

func addSubConditions(_ context.Context, t *Target) error {
	subs := []struct {
		def alarms.DefinitionID
		sc  alarms.SubCondition
	}{
		{DefLevelRamp, alarms.SubCondition{ID: SubRampLowLow, Name: "LO_LO", Expression: "Ramp < 15", Severity: 400, Message: "Low Low Alarm"}},
		{DefLevelRamp, alarms.SubCondition{ID: SubRampLow, Name: "LO", Expression: "Ramp < 25", Severity: 100, Message: "Low Alarm"}},
		{DefLevelRamp, alarms.SubCondition{ID: SubRampHigh, Name: "HI", Expression: "Ramp > 75", Severity: 100, Message: "High Alarm"}},
		{DefLevelRamp, alarms.SubCondition{ID: SubRampHighHigh, Name: "HI_HI", Expression: "Ramp > 85", Severity: 400, Message: "High High Alarm"}},
		{DefLevelFurnace, alarms.SubCondition{ID: SubFurnaceLow, Name: "LO", Expression: "Temp < 500", Severity: 100, Message: "Low Alarm"}},
		{DefLevelFurnace, alarms.SubCondition{ID: SubFurnaceHigh, Name: "HI", Expression: "Temp > 800", Severity: 100, Message: "High Alarm"}},
	}
	for _, s := range subs {
		if err := t.Model.AddSubCondition(s.def, s.sc); err != nil {
			return err
		}
	}
	return nil
}

func addAreas(_ context.Context, t *Target) error {
	areas := []struct {
		parent, id alarms.AreaID
		name       string
	}{
		{alarms.RootArea, AreaNorth, "PlantNorth"},
		{AreaNorth, AreaNorthDevice1, "Device1"},
		{alarms.RootArea, AreaSouth, "PlantSouth"},
		{AreaSouth, AreaSouthDevice1, "Device1"},
	}
	for _, a := range areas {
		if err := t.Model.AddArea(a.parent, a.id, a.name); err != nil {
			return err
		}
	}
	return nil
}

func addSources(_ context.Context, t *Target) error {
	sources := []struct {
		area   alarms.AreaID
		id     alarms.SourceID
		name   string
		shared bool
	}{
		{alarms.RootArea, SrcNetworkAdapter, "Network Adapter", false},
		{alarms.RootArea, SrcSerialPort, "Serial Port", false},
		{alarms.RootArea, SrcSystem, "System", false},
		{AreaNorthDevice1, SrcValve, "Valve", false},
		{AreaSouthDevice1, SrcMotor, "Motor", false},
		{alarms.RootArea, SrcTank1, "Level Sensor Tank 1", false},
		{alarms.RootArea, SrcTank2, "Level Sensor Tank 2", false},
		{alarms.RootArea, SrcHeating1, "Heating 1", false},
		{alarms.RootArea, SrcHeating2, "Heating 2", false},
		{alarms.RootArea, SrcMultiple, "Multiple Used Source", true},
	}
	for _, s := range sources {
		if err := t.Model.AddSource(s.area, s.id, s.name, s.shared); err != nil {
			return err
		}
	}
	for _, area := range []alarms.AreaID{AreaNorthDevice1, AreaSouthDevice1} {
		if err := t.Model.AttachExistingSource(area, SrcMultiple); err != nil {
			return err
		}
	}
	return nil
}

func instantiateConditions(_ context.Context, t *Target) error {
	conds := []struct {
		src alarms.SourceID
		def alarms.DefinitionID
		id  alarms.ConditionID
	}{
		{SrcMultiple, DefHighLevelTank, CondTank1Overflow},
		{SrcTank2, DefHighLevelTank, CondTank2Overflow},
		{SrcHeating1, DefHighLevelHeating, CondHeating1ExcTemp},
		{SrcHeating2, DefHighLevelHeating, CondHeating2ExcTemp},
		{SrcTank1, DefLevelRamp, CondWaterLevel},
	}
	for _, c := range conds {
		id, err := t.Model.Instantiate(c.src, c.def, alarms.WithConditionID(c.id))
		if err != nil {
			return err
		}
		if id != c.id {
			return fmt.Errorf("condition %s instantiated as %s", c.id, id)
		}
	}
	return nil
}
