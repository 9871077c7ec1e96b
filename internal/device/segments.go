package device

import "fmt"

// AddSegment claims [start, end] for display.
//
// The range is checked against every claim of a different display using
// min(e1, e2) - max(s1, s2) + 1 > 0; on overlap a *ConflictError is
// returned and nothing changes. Claims by the same display never conflict.
func (d *Device) AddSegment(display DisplayHandle, start, end int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if start < 0 || end < start || end >= d.cfg.PixelCount {
		return fmt.Errorf("segment %d-%d on %s with %d pixels: %w",
			start, end, d.id, d.cfg.PixelCount, ErrInvalidSegment)
	}

	for _, c := range d.claims {
		if c.display.ID() == display.ID() {
			continue
		}
		if min(c.end, end)-max(c.start, start)+1 > 0 {
			err := &ConflictError{
				Device:   d.id,
				Display:  displayLabel(display),
				Blocking: displayLabel(c.display),
			}
			d.logger.Warn("segment rejected", "device_id", d.id, "error", err)
			return err
		}
	}

	d.claims = append(d.claims, claim{display: display, start: start, end: end})
	d.invalidateLocked()
	return nil
}

// ClearDisplaySegments removes every claim held by displayID and reports
// whether the device is left without claims.
func (d *Device) ClearDisplaySegments(displayID string) (empty bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.claims[:0]
	removed := false
	for _, c := range d.claims {
		if c.display.ID() == displayID {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	// Zero the tail so dropped handles can be collected.
	for i := len(kept); i < len(d.claims); i++ {
		d.claims[i] = claim{}
	}
	d.claims = kept

	if removed {
		d.invalidateLocked()
	}
	return len(d.claims) == 0
}

// Displays returns the displays holding claims, in association order.
func (d *Device) Displays() []DisplayHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.associatedLocked()
	return append([]DisplayHandle(nil), out...)
}

// PriorityDisplay returns the active display with the highest refresh
// rate, earliest association winning ties. ok is false when no
// associated display is active.
func (d *Device) PriorityDisplay() (display DisplayHandle, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.priorityLocked()
}

// Invalidate drops the memoized associated and priority displays.
// Displays call it when their active state or refresh rate changes.
func (d *Device) Invalidate() {
	d.mu.Lock()
	d.invalidateLocked()
	d.mu.Unlock()
}

func (d *Device) invalidateLocked() {
	d.cacheValid = false
	d.associated = nil
	d.priority = nil
	d.hasPriority = false
}

func (d *Device) ensureCacheLocked() {
	if d.cacheValid {
		return
	}

	seen := make(map[string]bool, len(d.claims))
	var assoc []DisplayHandle
	for _, c := range d.claims {
		if id := c.display.ID(); !seen[id] {
			seen[id] = true
			assoc = append(assoc, c.display)
		}
	}

	var best DisplayHandle
	bestRate := 0
	for _, disp := range assoc {
		if !disp.IsActive() {
			continue
		}
		// Strictly greater keeps the earliest display on ties.
		if rate := disp.RefreshRate(); best == nil || rate > bestRate {
			best, bestRate = disp, rate
		}
	}

	d.associated = assoc
	d.priority = best
	d.hasPriority = best != nil
	d.cacheValid = true
}

func (d *Device) associatedLocked() []DisplayHandle {
	d.ensureCacheLocked()
	return d.associated
}

func (d *Device) priorityLocked() (DisplayHandle, bool) {
	d.ensureCacheLocked()
	return d.priority, d.hasPriority
}

func displayLabel(h DisplayHandle) string {
	if name := h.Name(); name != "" {
		return name
	}
	return h.ID()
}
