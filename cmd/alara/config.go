package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alaraproject/alara/datalib"
	"github.com/alaraproject/alara/internal/problem"
	"github.com/alaraproject/alara/schedule"
	"github.com/alaraproject/alara/solve"
)

// inputConfig is the JSON shape read from the CLI's positional input-file
// argument. The input-file tokenizer proper is out of scope; this is the
// minimal post-parse shape a real tokenizer would hand the solver, the same
// boundary a real tokenizer would sit behind.
type inputConfig struct {
	TransSource string `json:"trans_source"`
	DecaySource string `json:"decay_source"`
	TransFormat string `json:"trans_format"` // "eaf" or "ieaf"
	Library     string `json:"library"`      // prebuilt binary index, used instead of the two sources above

	NumGroups    int         `json:"num_groups"`
	CoolingTimes []float64   `json:"cooling_times"`
	Schedules    []namedSked `json:"schedules"`
	Roots        []rootInput `json:"roots"`

	// Reverse requests reverse-mode chain building: each root's chain walks
	// producing parents instead of produced daughters, for tracing which
	// progenitors contribute to a nuclide of interest.
	Reverse bool `json:"reverse"`
}

type namedSked struct {
	Name  string      `json:"name"`
	Items []itemInput `json:"items"`
}

type itemInput struct {
	IsLeaf          bool    `json:"is_leaf"`
	Pulse           float64 `json:"pulse"`
	Dwell           float64 `json:"dwell"`
	Count           int     `json:"count"`
	FluxIndex       int     `json:"flux_index"`
	SubScheduleName string  `json:"sub_schedule"`
	TrailingDwell   float64 `json:"trailing_dwell"`
}

type rootInput struct {
	Z                int             `json:"z"`
	A                int             `json:"a"`
	M                int             `json:"m"`
	KZA              int32           `json:"kza"`
	ScheduleName     string          `json:"schedule"`
	Reference        []float64       `json:"reference_flux"`
	ContainingFluxes []intervalInput `json:"containing_fluxes"`
	Fluxes           [][]float64     `json:"fluxes"`
	MaxRelativeConc  float64         `json:"max_relative_conc"`
	Weight           float64         `json:"weight"`
}

// intervalInput is one spatial interval's flux and volume, used to build a
// root's reference flux (via Context.ReferenceFluxMode) from every interval
// that contains it, rather than requiring the caller to precompute it.
type intervalInput struct {
	Volume float64   `json:"volume"`
	Flux   []float64 `json:"flux"`
}

func loadConfig(path string) (*inputConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &badInputError{Msg: "reading input file", Inner: err}
	}
	var cfg inputConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &badInputError{Msg: "parsing input file", Inner: err}
	}
	return &cfg, nil
}

// badInputError tags a malformed or unreadable input file, mapped to exit
// code 1.
type badInputError struct {
	Msg   string
	Inner error
}

func (e *badInputError) Error() string { return fmt.Sprintf("%s: %v", e.Msg, e.Inner) }
func (e *badInputError) Unwrap() error { return e.Inner }

// resolveLibrary opens cfg.Library directly if given, else merges the two
// ASCII sources into a temporary binary index first.
func resolveLibrary(cfg *inputConfig) (*datalib.Library, error) {
	if cfg.Library != "" {
		return datalib.Open(cfg.Library)
	}

	format := datalib.FormatEAF
	if cfg.TransFormat == "ieaf" {
		format = datalib.FormatIEAF
	}

	tmp, err := os.CreateTemp("", "alara-lib-*.bin")
	if err != nil {
		return nil, &badInputError{Msg: "creating temporary library", Inner: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := datalib.Build(cfg.TransSource, cfg.DecaySource, tmpPath, format); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	lib, err := datalib.Open(tmpPath)
	os.Remove(tmpPath)
	return lib, err
}

func buildSchedules(cfg *inputConfig) (map[string]*schedule.Schedule, error) {
	registry := make(map[string]*schedule.Schedule, len(cfg.Schedules))
	for _, ns := range cfg.Schedules {
		s := &schedule.Schedule{Name: ns.Name, Items: make([]schedule.Item, len(ns.Items))}
		for i, it := range ns.Items {
			s.Items[i] = schedule.Item{
				IsLeaf: it.IsLeaf,
				History: schedule.History{
					Pulse: it.Pulse,
					Dwell: it.Dwell,
					Count: it.Count,
				},
				FluxIndex:       it.FluxIndex,
				SubScheduleName: it.SubScheduleName,
				TrailingDwell:   it.TrailingDwell,
			}
		}
		registry[ns.Name] = s
	}
	for _, s := range registry {
		if err := schedule.Resolve(s, registry); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildTasks(cfg *inputConfig, registry map[string]*schedule.Schedule, ctx *problem.Context, lib *datalib.Library) ([]solve.RootTask, error) {
	tasks := make([]solve.RootTask, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		kza := datalib.KZA(r.KZA)
		if kza == 0 && (r.Z != 0 || r.A != 0) {
			kza = datalib.NewKZA(r.Z, r.A, r.M)
		}
		sked, ok := registry[r.ScheduleName]
		if !ok {
			return nil, &schedule.ScheduleError{Schedule: r.ScheduleName, Ref: r.ScheduleName, Msg: "dangling schedule reference"}
		}
		fluxes := make([]solve.Flux, len(r.Fluxes))
		for i, f := range r.Fluxes {
			fluxes[i] = solve.Flux{Groups: f}
		}
		weight := r.Weight
		if weight == 0 {
			weight = 1
		}

		reference := solve.Flux{Groups: r.Reference}
		if len(r.ContainingFluxes) > 0 {
			intervals := make([]solve.ContainingFlux, len(r.ContainingFluxes))
			for i, iv := range r.ContainingFluxes {
				intervals[i] = solve.ContainingFlux{Groups: iv.Flux, Volume: iv.Volume}
			}
			weights, _ := lib.GroupWeights()
			reference = solve.ReduceReferenceFlux(ctx.ReferenceFluxMode, intervals, weights)
		}

		tasks = append(tasks, solve.RootTask{
			KZA:             kza,
			Reference:       reference,
			Fluxes:          fluxes,
			Schedule:        sked,
			CoolingTimes:    append([]float64{0}, cfg.CoolingTimes...),
			MaxRelativeConc: r.MaxRelativeConc,
			Weight:          weight,
		})
	}
	return tasks, nil
}
