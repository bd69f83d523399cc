// Package fixture loads YAML-encoded scenario definitions used by the
// scheduler's canonical-scenario tests into a *scheduler.Project, the way
// some of its sibling repos load their own YAML-encoded test fixtures.
package fixture

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	scheduler "github.com/go-projsched/projsched"
)

type Interval struct {
	Start uint16 `yaml:"start"`
	End   uint16 `yaml:"end"`
}

type Resource struct {
	ID         int64              `yaml:"id"`
	Name       string             `yaml:"name"`
	Timezone   string             `yaml:"timezone"`
	ParentID   int64              `yaml:"parent"`
	Leaf       *bool              `yaml:"leaf"`
	Efficiency *RationalYAML      `yaml:"efficiency"`
	Weekly     map[int][]Interval `yaml:"weekly"`
	Leaves     []DateRangeYAML    `yaml:"leaves"`
	Limits     []LimitYAML        `yaml:"limits"`
}

type LimitYAML struct {
	Kind string `yaml:"kind"`
	Max  int64  `yaml:"max"`
}

type RationalYAML struct {
	Num int64 `yaml:"num"`
	Den int64 `yaml:"den"`
}

type DateRangeYAML struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

type AllocationGroup struct {
	Resources    []int64 `yaml:"resources"`
	Alternatives []int64 `yaml:"alternatives"`
}

type Dependency struct {
	Source int64  `yaml:"source"`
	Kind   string `yaml:"kind"`
	Gap    int64  `yaml:"gap"`
	MaxGap *int64 `yaml:"max_gap"`
	OnEnd  bool   `yaml:"on_end"`
}

type Demand struct {
	Kind   string `yaml:"kind"`
	Amount int64  `yaml:"amount"`
}

type Anchors struct {
	Start    *int64 `yaml:"start"`
	End      *int64 `yaml:"end"`
	MinStart *int64 `yaml:"min_start"`
	MaxEnd   *int64 `yaml:"max_end"`
}

type Task struct {
	ID           int64             `yaml:"id"`
	Name         string            `yaml:"name"`
	ParentID     int64             `yaml:"parent"`
	Direction    string            `yaml:"direction"`
	Demand       Demand            `yaml:"demand"`
	Allocations  []AllocationGroup `yaml:"allocations"`
	Contiguous   bool              `yaml:"contiguous"`
	Priority     int               `yaml:"priority"`
	Anchors      Anchors           `yaml:"anchors"`
	Dependencies []Dependency      `yaml:"dependencies"`
}

// Scenario is the top-level shape of a canonical-scenario YAML file.
type Scenario struct {
	ResolutionSeconds int64      `yaml:"resolution_seconds"`
	Start             time.Time  `yaml:"start"`
	End               time.Time  `yaml:"end"`
	RoundsMultiplier  int        `yaml:"rounds_multiplier"`
	Resources         []Resource `yaml:"resources"`
	Tasks             []Task     `yaml:"tasks"`
}

// LoadFile reads a YAML scenario fixture from disk and builds a fully
// wired *scheduler.Project from it.
func LoadFile(path string) (*scheduler.Project, *Scenario, error) {
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, nil, fmt.Errorf("reading fixture %s: %w", path, errRead)
	}

	return LoadBytes(raw)
}

// LoadBytes parses YAML scenario bytes directly, for tests that embed the
// fixture inline rather than reading from disk.
func LoadBytes(raw []byte) (*scheduler.Project, *Scenario, error) {
	var scenario Scenario

	if errUnmarshal := yaml.Unmarshal(raw, &scenario); errUnmarshal != nil {
		return nil, nil, fmt.Errorf("parsing fixture: %w", errUnmarshal)
	}

	project, errBuild := Build(&scenario)
	if errBuild != nil {
		return nil, nil, errBuild
	}

	return project, &scenario, nil
}

// Build materializes a Scenario into a scheduler.Project, generating a
// random synthetic ID from a fresh UUID for any resource or task whose
// fixture entry omits a numeric id.
func Build(scenario *Scenario) (*scheduler.Project, error) {
	grid, errGrid := scheduler.NewGrid(scheduler.ParamsNewGrid{
		ResolutionSeconds: scenario.ResolutionSeconds,
		ProjectStart:      scenario.Start,
		ProjectEnd:        scenario.End,
	})
	if errGrid != nil {
		return nil, errGrid
	}

	project, errProject := scheduler.NewProject(scheduler.ParamsNewProject{
		Grid:                grid,
		MaxRoundsMultiplier: scenario.RoundsMultiplier,
	})
	if errProject != nil {
		return nil, errProject
	}

	for _, rawResource := range scenario.Resources {
		resource, errResource := buildResource(grid, rawResource)
		if errResource != nil {
			return nil, errResource
		}

		if errAdd := project.AddResource(resource); errAdd != nil {
			return nil, errAdd
		}
	}

	for _, rawTask := range scenario.Tasks {
		task, errTask := buildTask(rawTask)
		if errTask != nil {
			return nil, errTask
		}

		if errAdd := project.AddTask(task); errAdd != nil {
			return nil, errAdd
		}
	}

	return project, nil
}

func buildResource(grid *scheduler.Grid, raw Resource) (*scheduler.Resource, error) {
	id := raw.ID
	if id == 0 {
		id = syntheticID()
	}

	leaf := true
	if raw.Leaf != nil {
		leaf = *raw.Leaf
	}

	var cal *scheduler.Calendar

	if leaf {
		var template scheduler.WeeklyTemplate

		for day, intervals := range raw.Weekly {
			if day < 0 || day > 6 {
				continue
			}

			for _, iv := range intervals {
				template[day] = append(template[day], scheduler.Interval{StartMin: iv.Start, EndMin: iv.End})
			}
		}

		built, errCal := scheduler.NewCalendar(scheduler.ParamsNewCalendar{
			Grid:     grid,
			Template: template,
			Timezone: raw.Timezone,
		})
		if errCal != nil {
			return nil, errCal
		}

		for _, leave := range raw.Leaves {
			built.ApplyLeave(scheduler.DateRange{Start: leave.Start, End: leave.End})
		}

		cal = built
	}

	efficiency := scheduler.RationalIdentity()
	if raw.Efficiency != nil {
		efficiency = scheduler.NewRational(raw.Efficiency.Num, raw.Efficiency.Den)
	}

	resource, errResource := scheduler.NewResource(scheduler.ParamsNewResource{
		ID:         id,
		Name:       raw.Name,
		Leaf:       leaf,
		ParentID:   raw.ParentID,
		Timezone:   raw.Timezone,
		Efficiency: efficiency,
		Calendar:   cal,
	})
	if errResource != nil {
		return nil, errResource
	}

	for _, l := range raw.Limits {
		kind, errKind := parseLimitKind(l.Kind)
		if errKind != nil {
			return nil, errKind
		}

		resource.Limits.Add(scheduler.NewLimit(kind, l.Max, grid))
	}

	return resource, nil
}

func parseLimitKind(kind string) (scheduler.LimitKind, error) {
	switch kind {
	case "daily":
		return scheduler.LimitDailyMax, nil
	case "weekly":
		return scheduler.LimitWeeklyMax, nil
	case "monthly":
		return scheduler.LimitMonthlyMax, nil
	default:
		return 0, fmt.Errorf("unknown limit kind %q", kind)
	}
}

func buildTask(raw Task) (*scheduler.Task, error) {
	id := raw.ID
	if id == 0 {
		id = syntheticID()
	}

	direction := scheduler.DirectionASAP
	if raw.Direction == "alap" {
		direction = scheduler.DirectionALAP
	}

	demandKind, errKind := parseDemandKind(raw.Demand.Kind)
	if errKind != nil {
		return nil, errKind
	}

	allocations := make([]scheduler.AllocationGroup, 0, len(raw.Allocations))

	for _, a := range raw.Allocations {
		allocations = append(allocations, scheduler.AllocationGroup{
			Resources:    a.Resources,
			Alternatives: a.Alternatives,
		})
	}

	dependencies := make([]scheduler.DependencyEdge, 0, len(raw.Dependencies))

	for _, d := range raw.Dependencies {
		kind := scheduler.EdgeEndToStart
		if d.Kind == "start_to_start" {
			kind = scheduler.EdgeStartToStart
		}

		dependencies = append(dependencies, scheduler.DependencyEdge{
			SourceID:    d.Source,
			Kind:        kind,
			Gap:         d.Gap,
			MaxGap:      d.MaxGap,
			TargetOnEnd: d.OnEnd,
		})
	}

	anchors := scheduler.Anchors{}

	if raw.Anchors.Start != nil {
		s := scheduler.Slot(*raw.Anchors.Start)
		anchors.Start = &s
	}

	if raw.Anchors.End != nil {
		s := scheduler.Slot(*raw.Anchors.End)
		anchors.End = &s
	}

	if raw.Anchors.MinStart != nil {
		s := scheduler.Slot(*raw.Anchors.MinStart)
		anchors.MinStart = &s
	}

	if raw.Anchors.MaxEnd != nil {
		s := scheduler.Slot(*raw.Anchors.MaxEnd)
		anchors.MaxEnd = &s
	}

	return scheduler.NewTask(scheduler.ParamsNewTask{
		ID:           id,
		Name:         raw.Name,
		ParentID:     raw.ParentID,
		Direction:    direction,
		Demand:       scheduler.Demand{Kind: demandKind, Amount: raw.Demand.Amount},
		Allocations:  allocations,
		Contiguous:   raw.Contiguous,
		Priority:     raw.Priority,
		Anchors:      anchors,
		Dependencies: dependencies,
	})
}

func parseDemandKind(kind string) (scheduler.DemandKind, error) {
	switch kind {
	case "effort", "":
		return scheduler.DemandEffort, nil
	case "duration":
		return scheduler.DemandDuration, nil
	case "length":
		return scheduler.DemandLength, nil
	default:
		return 0, fmt.Errorf("unknown demand kind %q", kind)
	}
}

// syntheticID derives a non-negative int64 identifier from a random UUID
// (a different value on every call) for fixtures that don't care to assign
// explicit numeric IDs.
func syntheticID() int64 {
	id := uuid.New()

	return int64(binary.BigEndian.Uint64(id[:8]) >> 1)
}
