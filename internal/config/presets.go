package config

var Presets = map[string]*Config{
	"small": {
		Channel: "small", Transport: "auto",
		Particles: 16, NNeighs: 4, Precision: "single", ForceMode: "overwrite",
		SendNeighbors: true, Dt: 0.005, Steps: 500, Cutoff: 2.5,
		TimeoutMS: DefaultTimeoutMS, Epsilon: 1.0, Sigma: 1.0,
	},
	"bulk": {
		Channel: "bulk", Transport: "auto",
		Particles: 1000, NNeighs: 32, Precision: "single", ForceMode: "add",
		SendNeighbors: true, Virial: true, Dt: 0.002, Steps: 2000, Cutoff: 2.5,
		TimeoutMS: DefaultTimeoutMS, Epsilon: 1.0, Sigma: 1.0,
	},
	"observer": {
		Channel: "observer", Transport: "auto",
		Particles: 128, NNeighs: 8, Precision: "double", ForceMode: "ignore",
		SendNeighbors: true, Dt: 0.005, Steps: 1000, Cutoff: 3.0,
		TimeoutMS: DefaultTimeoutMS, Epsilon: 1.0, Sigma: 1.0,
	},
	"perturber": {
		Channel: "perturber", Transport: "auto",
		Particles: 64, NNeighs: 0, Precision: "double", ForceMode: "output",
		SendNeighbors: false, Dt: 0.005, Steps: 1000, Cutoff: 2.5,
		TimeoutMS: DefaultTimeoutMS, Epsilon: 1.0, Sigma: 1.0,
	},
}

// GetPreset returns a copy of the named preset, or nil if unknown.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// ListPresets returns the available preset names.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
