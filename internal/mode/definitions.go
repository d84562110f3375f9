// internal/mode/definitions.go
package mode

// Technique table. Field names are the keys accepted by Decode.

func definitions() []entry {
	v := func(name string) Field { return Field{Name: name, Kind: KindFloat, Unit: "V"} }
	a := func(name string) Field { return Field{Name: name, Kind: KindFloat, Unit: "A"} }
	s := func(name string) Field { return Field{Name: name, Kind: KindFloat, Unit: "s"} }
	n := func(name string) Field { return Field{Name: name, Kind: KindInt} }

	return []entry{
		{
			code:        CA,
			family:      Potentiostatic,
			description: "Chronoamperometry: constant potential",
			fields:      []Field{v("potential"), s("duration")},
			new:         func() Params { return &ConstantPotential{} },
		},
		{
			code:        LSV,
			family:      Potentiostatic,
			description: "Linear sweep voltammetry",
			fields:      []Field{v("start"), v("end"), {Name: "scan_rate", Kind: KindFloat, Unit: "V/s"}},
			new:         func() Params { return &LinearSweep{} },
		},
		{
			code:        CV,
			family:      Potentiostatic,
			description: "Cyclic voltammetry",
			fields: []Field{
				v("start"), v("vertex1"), v("vertex2"), v("end"),
				{Name: "scan_rate", Kind: KindFloat, Unit: "V/s"},
				n("cycles"),
			},
			new: func() Params { return &CyclicVoltammetry{} },
		},
		{
			code:        PSTEP,
			family:      Potentiostatic,
			description: "Potential steps",
			fields:      []Field{{Name: "potentials", Kind: KindFloatList, Unit: "V"}, s("step_duration")},
			new:         func() Params { return &PotentialSteps{} },
		},
		{
			code:        CP,
			family:      Galvanostatic,
			description: "Chronopotentiometry: constant current",
			fields:      []Field{a("current"), s("duration")},
			new:         func() Params { return &ConstantCurrent{} },
		},
		{
			code:        STEPSEQ,
			family:      Galvanostatic,
			description: "Current step sequence",
			fields:      []Field{{Name: "currents", Kind: KindFloatList, Unit: "A"}, s("step_duration")},
			new:         func() Params { return &CurrentSteps{} },
		},
		{
			code:        GS,
			family:      Galvanostatic,
			description: "Linear current sweep",
			fields:      []Field{a("start"), a("end"), n("num_steps"), s("step_duration")},
			new:         func() Params { return &CurrentSweep{} },
		},
		{
			code:        GCV,
			family:      Galvanostatic,
			description: "Cyclic current sweep",
			fields: []Field{
				a("start"), a("vertex1"), a("vertex2"), a("end"),
				n("num_steps"), s("step_duration"), n("cycles"),
			},
			new: func() Params { return &CyclicCurrent{} },
		},
		{
			code:        OCP,
			family:      OpenCircuit,
			description: "Open circuit potential",
			fields:      []Field{s("duration")},
			new:         func() Params { return &OpenCircuitPotential{} },
		},
	}
}
