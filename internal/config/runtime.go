package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/engine"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/instrument"
	"github.com/newthinker/orb/internal/outcome"
	"github.com/newthinker/orb/internal/session"
	"github.com/newthinker/orb/internal/storage/archive"
)

// The methods below turn the file representation into the immutable runtime
// objects the engine is built from.

// Resolver builds the session calendar.
func (c *Config) Resolver() (*session.Resolver, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	ref, err := session.ParseClock(c.Session.ReferenceOpen)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reference_open: %w", err))
	}
	cutoff, err := session.ParseClock(c.Session.OvernightCutoff)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("overnight_cutoff: %w", err))
	}

	slots := make([]session.Slot, 0, len(c.Session.Slots))
	for _, s := range c.Session.Slots {
		start, err := session.ParseClock(s.Start)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("slot %q: %w", s.Name, err))
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("%02d%02d", start.Hour, start.Minute)
		}
		slots = append(slots, session.Slot{
			Name:          name,
			Start:         start,
			RangeDuration: time.Duration(s.RangeMinutes) * time.Minute,
		})
	}

	return session.NewResolver(session.Config{
		Location:        loc,
		ReferenceOpen:   ref,
		OvernightCutoff: cutoff,
		RangeDuration:   time.Duration(c.Session.RangeMinutes) * time.Minute,
		Slots:           slots,
	})
}

// Granularity returns the bar width the engine reads.
func (c *Config) Granularity() (core.Granularity, error) {
	g, err := core.ParseGranularity(c.Session.Granularity)
	if err != nil {
		return "", core.WrapError(core.ErrConfigInvalid, err)
	}
	return g, nil
}

// Registry builds the instrument registry. Without an instruments section the
// built-in table is used; without a blocked section the built-in blocked list.
func (c *Config) Registry() (*instrument.Registry, error) {
	specs := instrument.DefaultSpecs()
	if len(c.Instruments) > 0 {
		specs = make([]instrument.Spec, 0, len(c.Instruments))
		for sym, ic := range c.Instruments {
			status := instrument.Status(strings.ToLower(ic.Status))
			if status == "" {
				status = instrument.StatusResearch
			}
			specs = append(specs, instrument.Spec{
				Symbol:        strings.ToUpper(sym),
				TickSize:      ic.TickSize,
				TickValue:     ic.TickValue,
				PointValue:    ic.PointValue,
				CommissionRT:  ic.CommissionRT,
				SpreadTicks:   ic.SpreadTicks,
				SlippageTicks: ic.SlippageTicks,
				Status:        status,
				Aliases:       ic.Aliases,
			})
		}
		sort.Slice(specs, func(i, j int) bool { return specs[i].Symbol < specs[j].Symbol })
	}

	blocked := instrument.DefaultBlocked()
	if len(c.Blocked) > 0 {
		blocked = make([]instrument.Spec, 0, len(c.Blocked))
		for sym, aliases := range c.Blocked {
			blocked = append(blocked, instrument.Spec{
				Symbol:  strings.ToUpper(sym),
				Status:  instrument.StatusBlocked,
				Aliases: aliases,
			})
		}
		sort.Slice(blocked, func(i, j int) bool { return blocked[i].Symbol < blocked[j].Symbol })
	}

	return instrument.NewRegistry(specs, blocked)
}

// CostModel binds the gate and stress levels to reg.
func (c *Config) CostModel(reg *instrument.Registry) (*cost.Model, error) {
	stress := make(map[cost.Stress]float64, len(c.Engine.Stress))
	for name, m := range c.Engine.Stress {
		stress[cost.Stress(name)] = m
	}
	return cost.NewModel(reg, cost.Config{
		GateThreshold: c.Engine.CostGateThreshold,
		Stress:        stress,
	})
}

// Grid expands the grid section into distinct parameter sets, ordered by
// policy, RR, stop mode, anchor and stress.
func (c *Config) Grid() ([]engine.Params, error) {
	g := c.Engine.Grid
	if len(g.Policies) == 0 || len(g.RR) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("grid needs at least one policy and one rr"))
	}

	policies := make([]execution.Policy, 0, len(g.Policies))
	for _, name := range g.Policies {
		kind, err := execution.ParseKind(name)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		p, err := execution.NewPolicy(kind, c.Policies)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		policies = append(policies, p)
	}

	stops := []outcome.StopMode{outcome.StopFull}
	if len(g.StopModes) > 0 {
		stops = stops[:0]
		for _, s := range g.StopModes {
			m, err := outcome.ParseStopMode(s)
			if err != nil {
				return nil, core.WrapError(core.ErrConfigInvalid, err)
			}
			stops = append(stops, m)
		}
	}

	anchors := []outcome.Anchor{outcome.AnchorFill}
	if len(g.Anchors) > 0 {
		anchors = anchors[:0]
		for _, s := range g.Anchors {
			a, err := outcome.ParseAnchor(s)
			if err != nil {
				return nil, core.WrapError(core.ErrConfigInvalid, err)
			}
			anchors = append(anchors, a)
		}
	}

	stresses := []cost.Stress{cost.StressNormal}
	if len(g.Stress) > 0 {
		stresses = stresses[:0]
		for _, s := range g.Stress {
			name := cost.Stress(strings.ToLower(strings.TrimSpace(s)))
			if _, ok := c.Engine.Stress[string(name)]; !ok && name != cost.StressNormal {
				return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("grid stress %q is not configured", s))
			}
			stresses = append(stresses, name)
		}
	}

	var grid []engine.Params
	for _, pol := range policies {
		for _, rr := range g.RR {
			for _, stop := range stops {
				for _, anchor := range anchors {
					for _, stress := range stresses {
						p := engine.Params{Policy: pol, RR: rr, StopMode: stop, Anchor: anchor, Stress: stress}
						if err := p.Validate(); err != nil {
							return nil, core.WrapError(core.ErrConfigInvalid, err)
						}
						grid = append(grid, p)
					}
				}
			}
		}
	}
	return engine.Unique(grid), nil
}

// Archive returns the archive backend settings.
func (c *Config) Archive() archive.Config {
	return archive.Config{
		Backend: c.Storage.Archive.Type,
		Path:    c.Storage.Archive.Path,
		S3:      c.Storage.Archive.S3,
	}
}
