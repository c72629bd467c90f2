package raid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Enclosure is /cN/eE.
type Enclosure struct {
	r    Runner
	ctl  int
	id   int
	name string
}

func newEnclosure(r Runner, ctl, id int) *Enclosure {
	return &Enclosure{r: r, ctl: ctl, id: id, name: fmt.Sprintf("/c%d/e%d", ctl, id)}
}

func (e *Enclosure) ID() int           { return e.id }
func (e *Enclosure) ControllerID() int { return e.ctl }
func (e *Enclosure) Path() string      { return e.name }

func (e *Enclosure) Facts(ctx context.Context) (map[string]any, error) {
	return data(ctx, e.r, e.name, []string{"show", "all"})
}

// HasDrives reports whether the PD column is non-zero.
func (e *Enclosure) HasDrives(ctx context.Context) (bool, error) {
	d, err := data(ctx, e.r, e.name, []string{"show"})
	if err != nil {
		return false, err
	}
	rows := asList(d["Properties"])
	if len(rows) == 0 {
		return false, missingKey(e.name+" show", "Properties")
	}
	n, _ := asInt(rows[0]["PD"])
	return n > 0, nil
}

// SlotIDs returns the occupied slots.
func (e *Enclosure) SlotIDs(ctx context.Context) ([]int, error) {
	has, err := e.HasDrives(ctx)
	if err != nil || !has {
		return nil, err
	}
	d, err := data(ctx, e.r, e.name+"/sall", []string{"show"})
	if err != nil {
		return nil, err
	}
	var out []int
	for _, row := range asList(d["Drive Information"]) {
		_, slot, ok := strings.Cut(asString(row["EID:Slt"]), ":")
		if !ok {
			continue
		}
		if s, err := strconv.Atoi(slot); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// Drives returns a handle for every occupied slot.
func (e *Enclosure) Drives(ctx context.Context) ([]*Drive, error) {
	slots, err := e.SlotIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Drive, 0, len(slots))
	for _, s := range slots {
		out = append(out, newDrive(e.r, e.ctl, e.id, s))
	}
	return out, nil
}

// Drive returns the drive in slot after checking it exists.
func (e *Enclosure) Drive(ctx context.Context, slot int) (*Drive, error) {
	d := newDrive(e.r, e.ctl, e.id, slot)
	if err := exists(ctx, e.r, "drive", d.name); err != nil {
		return nil, err
	}
	return d, nil
}
