package registers

import "xtherma_bridge/internal/mapper"

// Enum options
var (
	ModeOptions    = []string{"standby", "heating", "cooling", "water", "auto"}
	SGReadyOptions = []string{"off", "normal", "block", "raise", "start"}
	NetworkOptions = []string{"off", "normal", "block", "raise"}
)

func toggle(key, name string) *Descriptor {
	return &Descriptor{Key: key, Name: name, Kind: KindBoolean, Category: Setting, Writable: true, Max: 1, Step: 1}
}

func choice(key, name string, options []string) *Descriptor {
	return &Descriptor{Key: key, Name: name, Kind: KindEnum, Category: Setting, Writable: true, Options: options, Max: float64(len(options) - 1), Step: 1}
}

func setpoint(key, name string, lo, hi float64) *Descriptor {
	return &Descriptor{Key: key, Name: name, Kind: KindTemperature, Unit: "°C", Category: Setting, Writable: true, Min: lo, Max: hi, Step: 1}
}

func sensor(key, name string, kind Kind, unit, factor string) *Descriptor {
	return &Descriptor{Key: key, Name: name, Kind: kind, Unit: unit, Factor: mapper.ParseFactor(factor)}
}

func temp(key, name string) *Descriptor {
	return sensor(key, name, KindTemperature, "°C", mapper.TagDiv10)
}

func state(key, name string) *Descriptor {
	return &Descriptor{Key: key, Name: name, Kind: KindBoolean}
}

func enum(key, name string, options []string) *Descriptor {
	return &Descriptor{Key: key, Name: name, Kind: KindEnum, Options: options}
}

func energy(key, name string) *Descriptor {
	return sensor(key, name, KindEnergy, "kWh", mapper.TagDiv100)
}

// table builds a fresh copy of the register banks.
func table() []Bank {
	return []Bank{
		{Name: "settings_general", Base: 0, Slots: []*Descriptor{
			toggle("001", "Heat pump enabled"),
			choice("002", "Operating mode", ModeOptions),
			toggle("003", "Hot water enabled"),
		}},
		{Name: "settings_heating_curve_1", Base: 10, Slots: []*Descriptor{
			toggle("310", "Heating circuit 1 enabled"),
			setpoint("311", "Heating curve 1 outside temperature low", -20, 25),
			setpoint("312", "Heating curve 1 outside temperature high", -9, 25),
			setpoint("315", "Heating curve 1 flow temperature low", 20, 75),
			setpoint("316", "Heating curve 1 flow temperature high", 20, 75),
			setpoint("320", "Heating curve 1 flow temperature limit", 20, 75),
		}},
		{Name: "settings_cooling_curve_1", Base: 20, Slots: []*Descriptor{
			toggle("350", "Cooling circuit 1 enabled"),
			setpoint("351", "Cooling curve 1 outside temperature low", 16, 32),
			setpoint("352", "Cooling curve 1 outside temperature high", 29, 45),
			setpoint("355", "Cooling curve 1 flow temperature low", 7, 30),
			setpoint("356", "Cooling curve 1 flow temperature high", 7, 30),
			setpoint("360", "Cooling curve 1 flow temperature limit", 7, 30),
		}},
		{Name: "settings_heating_curve_2", Base: 30, Slots: []*Descriptor{
			toggle("410", "Heating circuit 2 enabled"),
			setpoint("411", "Heating curve 2 outside temperature low", -20, 25),
			setpoint("412", "Heating curve 2 outside temperature high", -9, 25),
			setpoint("415", "Heating curve 2 flow temperature low", 20, 75),
			setpoint("416", "Heating curve 2 flow temperature high", 20, 75),
			setpoint("420", "Heating curve 2 flow temperature limit", 20, 75),
		}},
		{Name: "settings_cooling_curve_2", Base: 40, Slots: []*Descriptor{
			toggle("450", "Cooling circuit 2 enabled"),
			setpoint("451", "Cooling curve 2 outside temperature low", 16, 32),
			setpoint("452", "Cooling curve 2 outside temperature high", 29, 45),
			setpoint("455", "Cooling curve 2 flow temperature low", 7, 30),
			setpoint("456", "Cooling curve 2 flow temperature high", 7, 30),
			setpoint("460", "Cooling curve 2 flow temperature limit", 7, 30),
		}},
		{Name: "settings_hot_water", Base: 50, Slots: []*Descriptor{
			setpoint("501", "Hot water target temperature", 25, 75),
			setpoint("522", "Hot water hysteresis temperature", 30, 55),
		}},
		{Name: "settings_network", Base: 60, Slots: []*Descriptor{
			choice("808", "SG ready mode", NetworkOptions),
			setpoint("811", "SG ready raise heating", 0, 30),
			setpoint("812", "SG ready raise cooling", 0, 30),
			setpoint("813", "SG ready raise hot water", 0, 30),
			toggle("815", "PV surplus enabled"),
		}},
		{Name: "telemetry_general", Base: 100, Slots: []*Descriptor{
			sensor("controller_v", "Controller version", KindVersion, "", mapper.TagDiv100),
			enum("mode", "Operating mode", ModeOptions),
			state("error", "Error"),
			state("14a", "Grid operator control (14a)"),
			enum("sg", "SG ready state", SGReadyOptions),
			state("evu", "Utility block (EVU)"),
		}},
		{Name: "telemetry_target_values", Base: 110, Slots: []*Descriptor{
			temp("h_target", "Heating target"),
			temp("h1_target", "Heating circuit 1 target"),
			temp("h2_target", "Heating circuit 2 target"),
			temp("c_target", "Cooling target"),
			temp("c1_target", "Cooling circuit 1 target"),
			temp("c2_target", "Cooling circuit 2 target"),
			sensor("hw_target", "Hot water target", KindTemperature, "°C", ""),
		}},
		{Name: "telemetry_temperatures", Base: 120, Slots: []*Descriptor{
			temp("tk", "Circuit temperature"),
			temp("tk1", "Circuit 1 temperature"),
			temp("tk2", "Circuit 2 temperature"),
			temp("tw", "Hot water temperature"),
			temp("tr", "Room temperature"),
			temp("trl", "Return line temperature"),
			temp("tvl", "Flow line temperature"),
		}},
		{Name: "telemetry_pumps_and_actors", Base: 130, Slots: []*Descriptor{
			sensor("v", "Flow rate", KindFlow, "l/min", mapper.TagDiv10),
			state("pk", "Circuit pump"),
			sensor("pkl", "Circuit pump power", KindPercentage, "%", mapper.TagDiv10),
			state("pk1", "Circuit 1 pump"),
			state("pk2", "Circuit 2 pump"),
			state("pww", "Hot water pump"),
			sensor("vf", "Compressor frequency", KindFrequency, "Hz", ""),
			sensor("ld1", "Fan 1 speed", KindSpeed, "rpm", ""),
			sensor("ld2", "Fan 2 speed", KindSpeed, "rpm", ""),
		}},
		{Name: "telemetry_outside_temperatures", Base: 140, Slots: []*Descriptor{
			temp("ta", "Outside temperature"),
			temp("ta1", "Outside temperature 1h average"),
			temp("ta4", "Outside temperature 4h average"),
			temp("ta8", "Outside temperature 8h average"),
			temp("ta24", "Outside temperature 24h average"),
		}},
		{Name: "telemetry_performance", Base: 170, Slots: []*Descriptor{
			sensor("out_hp", "Heat pump output power", KindPower, "W", mapper.TagMul10),
			sensor("in_hp", "Heat pump input power", KindPower, "W", mapper.TagMul10),
			sensor("efficiency_hp", "Heat pump efficiency", KindDimensionless, "", mapper.TagDiv100),
			sensor("efficiency_total", "Total efficiency", KindDimensionless, "", mapper.TagDiv100),
			sensor("out_backup", "Backup heater output power", KindPower, "W", mapper.TagMul100),
			sensor("in_backup", "Backup heater input power", KindPower, "W", mapper.TagMul100),
			sensor("out_total", "Total output power", KindPower, "W", mapper.TagMul10),
			sensor("in_total", "Total input power", KindPower, "W", mapper.TagMul10),
		}},
		{Name: "telemetry_daily_energy", Base: 180, Slots: []*Descriptor{
			energy("day_hp_out_h", "Heat pump heating output today"),
			energy("day_hp_in_h", "Heat pump heating input today"),
			energy("day_hp_out_c", "Heat pump cooling output today"),
			energy("day_hp_in_c", "Heat pump cooling input today"),
			energy("day_hp_out_hw", "Heat pump hot water output today"),
			energy("day_hp_in_hw", "Heat pump hot water input today"),
			energy("day_backup3_out_h", "Backup 3kW heating output today"),
			energy("day_backup3_in_h", "Backup 3kW heating input today"),
			energy("day_backup3_out_hw", "Backup 3kW hot water output today"),
			energy("day_backup3_in_hw", "Backup 3kW hot water input today"),
			energy("day_backup6_out_h", "Backup 6kW heating output today"),
			energy("day_backup6_in_h", "Backup 6kW heating input today"),
			energy("day_backup6_out_hw", "Backup 6kW hot water output today"),
			energy("day_backup6_in_hw", "Backup 6kW hot water input today"),
		}},
	}
}
