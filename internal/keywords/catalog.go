package keywords

// Category is one entry of the system-type catalog. Primary keywords
// score an extra bonus on every match.
type Category struct {
	Name     string
	Keywords []string
	Primary  []string
}

// Catalog is the closed list of system types, in tie-break order.
var Catalog = []Category{
	{
		Name:     "generator_control",
		Keywords: []string{"generator", "genset", "engine", "alternator", "transfer switch", "ats", "governor", "excitation", "synchronization", "diesel"},
		Primary:  []string{"generator", "genset", "transfer switch"},
	},
	{
		Name:     "water_treatment",
		Keywords: []string{"water treatment", "filtration", "chlorine", "turbidity", "clarifier", "backwash", "dosing", "reverse osmosis", "membrane", "effluent", "ph"},
		Primary:  []string{"water treatment", "filtration", "chlorine"},
	},
	{
		Name:     "gas_analyzer",
		Keywords: []string{"gas analyzer", "analyzer", "analyser", "concentration", "ppm", "calibration gas", "emission", "nox", "co2", "o2"},
		Primary:  []string{"gas analyzer", "analyzer", "analyser"},
	},
	{
		Name:     "motor_control",
		Keywords: []string{"motor", "vfd", "variable frequency", "drive", "starter", "torque", "rpm"},
		Primary:  []string{"motor", "vfd"},
	},
	{
		Name:     "pump_system",
		Keywords: []string{"pump", "pumping", "suction", "discharge", "impeller", "priming", "duty pump", "standby pump"},
		Primary:  []string{"pump"},
	},
	{
		Name:     "valve_control",
		Keywords: []string{"valve", "actuator", "positioner", "solenoid", "butterfly valve", "gate valve", "limit switch"},
		Primary:  []string{"valve"},
	},
	{
		Name:     "hvac_control",
		Keywords: []string{"hvac", "air handling", "ahu", "ventilation", "damper", "thermostat", "humidity", "fan coil", "heating", "cooling"},
		Primary:  []string{"hvac", "ahu"},
	},
	{
		Name:     "power_distribution",
		Keywords: []string{"power distribution", "switchgear", "breaker", "busbar", "transformer", "feeder", "mcc", "load shedding", "kva"},
		Primary:  []string{"switchgear", "power distribution"},
	},
	{
		Name:     "boiler_control",
		Keywords: []string{"boiler", "burner", "steam", "feedwater", "drum level", "flue gas", "combustion"},
		Primary:  []string{"boiler"},
	},
	{
		Name:     "conveyor_system",
		Keywords: []string{"conveyor", "belt", "sorter", "diverter", "accumulation", "tote", "carrier"},
		Primary:  []string{"conveyor"},
	},
	{
		Name:     "tank_monitoring",
		Keywords: []string{"tank", "tank farm", "overflow", "inventory", "level transmitter", "level"},
		Primary:  []string{"tank"},
	},
	{
		Name:     "compressor_control",
		Keywords: []string{"compressor", "compressed air", "air receiver", "dryer", "unloading", "surge"},
		Primary:  []string{"compressor"},
	},
	{
		Name:     "chiller_plant",
		Keywords: []string{"chiller", "chilled water", "condenser", "cooling tower", "evaporator", "refrigerant"},
		Primary:  []string{"chiller"},
	},
	{
		Name:     "fire_safety",
		Keywords: []string{"fire", "smoke", "sprinkler", "suppression", "detector", "evacuation", "fire alarm"},
		Primary:  []string{"fire alarm", "suppression"},
	},
	{
		Name:     "battery_storage",
		Keywords: []string{"battery", "bess", "state of charge", "soc", "inverter", "charging", "discharging"},
		Primary:  []string{"battery", "bess"},
	},
}

// ComponentTerms, OperationTerms and ControlTerms are matched by plain
// substring membership; results keep this order.
var ComponentTerms = []string{
	"generator", "engine", "alternator", "transfer switch", "circuit breaker",
	"transformer", "motor", "pump", "valve", "tank", "sensor", "transmitter",
	"compressor", "chiller", "boiler", "burner", "fan", "damper", "conveyor",
	"battery", "inverter", "plc", "hmi", "analyzer", "meter", "relay",
	"actuator", "heat exchanger", "filter",
}

var OperationTerms = []string{
	"start", "stop", "reset", "monitor", "control", "alarm", "trip",
	"synchronize", "load", "fill", "drain", "open", "close", "calibrate",
	"maintenance", "test", "shutdown", "backwash", "purge", "acknowledge",
}

var ControlTerms = []string{
	"button", "switch", "setpoint", "slider", "toggle", "selector",
	"emergency stop", "e-stop", "keypad", "touchscreen", "indicator", "knob",
	"auto", "manual", "mode",
}
