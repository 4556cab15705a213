package population

import (
	"time"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/simulation"
	"github.com/marmos91/daserver/pkg/variant"
)

// ScenarioConfig holds the trigger periods of the sample scenarios.
type ScenarioConfig struct {
	TankOverflow  time.Duration
	WaterLevel    time.Duration
	Heating       time.Duration
	DeviceFailure time.Duration
}

// DefaultScenarioConfig returns the sample periods.
func DefaultScenarioConfig() ScenarioConfig {
	return ScenarioConfig{
		TankOverflow:  2 * time.Second,
		WaterLevel:    3 * time.Second,
		Heating:       5 * time.Second,
		DeviceFailure: 2 * time.Minute,
	}
}

// LevelValues is the cycle driving the water level condition.
var LevelValues = []int32{10, 20, 50, 80, 90}

// LevelBands classifies a water level into the ramp sub-conditions.
var LevelBands = []simulation.Band{
	simulation.Below(SubRampLowLow, 15),
	simulation.Between(SubRampLow, 15, 25),
	simulation.Between(SubRampHigh, 76, 86),
	simulation.Above(SubRampHighHigh, 85),
}

// NetworkAdapterName is the device name carried by the device failure event.
const NetworkAdapterName = "3Com EtherLink XL NIC (3C900B-COMBO)"

// Scenarios returns the sample condition and event scenarios.
func Scenarios(cfg ScenarioConfig) ([]simulation.Scenario, error) {
	level, err := simulation.NewBandCycle("water_level", cfg.WaterLevel, CondWaterLevel, LevelValues, 2, LevelBands)
	if err != nil {
		return nil, err
	}
	level.OverrideAck(SubRampHigh, true)

	return []simulation.Scenario{
		simulation.NewToggle("tank1_overflow", cfg.TankOverflow, CondTank1Overflow,
			simulation.ToggleState{Message: "Overflow", Attribute: variant.Must(int32(123))},
			simulation.ToggleState{Message: "Normal State", Attribute: variant.Must(int32(80))}),
		level,
		simulation.NewToggle("heating1_temperature", cfg.Heating, CondHeating1ExcTemp,
			simulation.ToggleState{Message: "Excess Temperature", Attribute: variant.Must(int32(55))},
			simulation.ToggleState{Message: "Normal Temperature", Attribute: variant.Must(int32(35))}),
		simulation.NewPeriodicEvent("device_failure", cfg.DeviceFailure, alarms.Event{
			Kind:     alarms.KindSimple,
			Category: CatDeviceFailure,
			Source:   SrcNetworkAdapter,
			Message:  "No response",
			Severity: 800,
			Attributes: []variant.Value{
				variant.Must(NetworkDownCode),
				variant.Must(NetworkAdapterName),
			},
		}),
	}, nil
}

// Signals returns the simulated data signals. counter backs the item count
// signal, which is refreshed on every tick.
func Signals(counter interface{ Count() int }, seed int64) []simulation.Signal {
	return []simulation.Signal{
		{Name: "number_items", Item: ItemNumberItems, Gen: simulation.ItemCount(counter), Always: true},
		{Name: "ramp", Item: ItemRamp, Gen: simulation.NewRamp(0, 100)},
		{Name: "sine", Item: ItemSine, Gen: simulation.NewSine(40, 1.0)},
		{Name: "random", Item: ItemRandom, Gen: simulation.NewRandom(32767, seed)},
	}
}
