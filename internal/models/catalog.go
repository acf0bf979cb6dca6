package models

import (
	"sort"
)

// Catalog is an ordered, read-only collection of earthquakes.
// The zero value is an empty catalog.
type Catalog struct {
	events []Earthquake
}

// NewCatalog creates a catalog holding a copy of events.
func NewCatalog(events []Earthquake) *Catalog {
	cp := make([]Earthquake, len(events))
	copy(cp, events)
	return &Catalog{events: cp}
}

// Len returns the number of events in the catalog. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.events)
}

// At returns the i-th event.
func (c *Catalog) At(i int) Earthquake {
	return c.events[i]
}

// Events returns a copy of the catalog's events in catalog order.
func (c *Catalog) Events() []Earthquake {
	if c == nil {
		return []Earthquake{}
	}
	cp := make([]Earthquake, len(c.events))
	copy(cp, c.events)
	return cp
}

// Magnitudes returns the magnitude of every event in catalog order.
func (c *Catalog) Magnitudes() []float64 {
	mags := make([]float64, c.Len())
	for i := range mags {
		mags[i] = c.events[i].Magnitude
	}
	return mags
}

// MaxMagnitude returns the largest magnitude, or false when the catalog is empty.
func (c *Catalog) MaxMagnitude() (float64, bool) {
	if c.Len() == 0 {
		return 0, false
	}
	max := c.events[0].Magnitude
	for _, e := range c.events[1:] {
		if e.Magnitude > max {
			max = e.Magnitude
		}
	}
	return max, true
}

// FilterByMagnitude returns a new catalog with events whose magnitude lies in
// [min, max]. A nil bound is open.
func (c *Catalog) FilterByMagnitude(min, max *float64) *Catalog {
	return c.filter(func(e Earthquake) bool {
		if min != nil && e.Magnitude < *min {
			return false
		}
		if max != nil && e.Magnitude > *max {
			return false
		}
		return true
	})
}

// FilterByDepth returns a new catalog with events whose depth lies in [min, max].
// A nil bound is open.
func (c *Catalog) FilterByDepth(min, max *float64) *Catalog {
	return c.filter(func(e Earthquake) bool {
		if min != nil && e.Depth < *min {
			return false
		}
		if max != nil && e.Depth > *max {
			return false
		}
		return true
	})
}

// SortByTime returns a new catalog ordered by origin time, oldest first unless
// reverse is set. The sort is stable so simultaneous events keep catalog order.
func (c *Catalog) SortByTime(reverse bool) *Catalog {
	events := c.Events()
	sort.SliceStable(events, func(i, j int) bool {
		if reverse {
			return events[i].Time.After(events[j].Time)
		}
		return events[i].Time.Before(events[j].Time)
	})
	return &Catalog{events: events}
}

// SortByMagnitude returns a new catalog ordered by magnitude, largest first
// when reverse is set.
func (c *Catalog) SortByMagnitude(reverse bool) *Catalog {
	events := c.Events()
	sort.SliceStable(events, func(i, j int) bool {
		if reverse {
			return events[i].Magnitude > events[j].Magnitude
		}
		return events[i].Magnitude < events[j].Magnitude
	})
	return &Catalog{events: events}
}

func (c *Catalog) filter(keep func(Earthquake) bool) *Catalog {
	var out []Earthquake
	for i := 0; i < c.Len(); i++ {
		if keep(c.events[i]) {
			out = append(out, c.events[i])
		}
	}
	return &Catalog{events: out}
}
