package raid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// VirtualDrive is /cN/vM.
type VirtualDrive struct {
	r    Runner
	ctl  int
	id   int
	name string
}

func newVirtualDrive(r Runner, ctl, id int) *VirtualDrive {
	return &VirtualDrive{r: r, ctl: ctl, id: id, name: fmt.Sprintf("/c%d/v%d", ctl, id)}
}

func (v *VirtualDrive) ID() int           { return v.id }
func (v *VirtualDrive) ControllerID() int { return v.ctl }
func (v *VirtualDrive) Path() string      { return v.name }

// row returns the virtual drive's line of the "show" table.
func (v *VirtualDrive) row(ctx context.Context) (map[string]any, error) {
	d, err := data(ctx, v.r, v.name, []string{"show"})
	if err != nil {
		return nil, err
	}
	rows := asList(d["Virtual Drives"])
	if len(rows) == 0 {
		return nil, missingKey(v.name+" show", "Virtual Drives")
	}
	return rows[0], nil
}

// properties returns the "VDn Properties" block of "show all".
func (v *VirtualDrive) properties(ctx context.Context) (map[string]any, error) {
	d, err := v.Facts(ctx)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("VD%d Properties", v.id)
	props := asMap(d[key])
	if props == nil {
		return nil, missingKey(v.name+" show all", key)
	}
	return props, nil
}

// operation returns the "VD Operation Status" row of "show <what>".
func (v *VirtualDrive) operation(ctx context.Context, what string) (map[string]any, error) {
	d, err := data(ctx, v.r, v.name, []string{"show", what})
	if err != nil {
		return nil, err
	}
	rows := asList(d["VD Operation Status"])
	if len(rows) == 0 {
		return nil, missingKey(v.name+" show "+what, "VD Operation Status")
	}
	return rows[0], nil
}

func (v *VirtualDrive) Facts(ctx context.Context) (map[string]any, error) {
	return data(ctx, v.r, v.name, []string{"show", "all"})
}

// Name returns the virtual drive's label.
func (v *VirtualDrive) Name(ctx context.Context) (string, error) {
	row, err := v.row(ctx)
	if err != nil {
		return "", err
	}
	return asString(row["Name"]), nil
}

func (v *VirtualDrive) SetName(ctx context.Context, name string) (map[string]any, error) {
	return commandStatus(ctx, v.r, v.name, "set", "name="+name)
}

// RAID returns the TYPE column ("RAID1").
func (v *VirtualDrive) RAID(ctx context.Context) (string, error) {
	row, err := v.row(ctx)
	if err != nil {
		return "", err
	}
	return asString(row["TYPE"]), nil
}

func (v *VirtualDrive) Size(ctx context.Context) (string, error) {
	row, err := v.row(ctx)
	if err != nil {
		return "", err
	}
	return asString(row["Size"]), nil
}

func (v *VirtualDrive) State(ctx context.Context) (VDState, error) {
	row, err := v.row(ctx)
	if err != nil {
		return "", err
	}
	return ParseVDState(asString(row["State"])), nil
}

// StripSize returns the strip size without its unit ("64").
func (v *VirtualDrive) StripSize(ctx context.Context) (string, error) {
	props, err := v.properties(ctx)
	if err != nil {
		return "", err
	}
	f := strings.Fields(asString(props["Strip Size"]))
	if len(f) == 0 {
		return "", nil
	}
	return f[0], nil
}

func (v *VirtualDrive) OSExposed(ctx context.Context) (bool, error) {
	props, err := v.properties(ctx)
	if err != nil {
		return false, err
	}
	return asString(props["Exposed to OS"]) == "Yes", nil
}

func (v *VirtualDrive) OSName(ctx context.Context) (string, error) {
	props, err := v.properties(ctx)
	if err != nil {
		return "", err
	}
	return asString(props["OS Drive Name"]), nil
}

// DriveIDs returns the member drives as "enclosure:slot".
func (v *VirtualDrive) DriveIDs(ctx context.Context) ([]string, error) {
	d, err := v.Facts(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, pd := range asList(d[fmt.Sprintf("PDs for VD %d", v.id)]) {
		if id := asString(pd["EID:Slt"]); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// Drives returns handles for the member drives.
func (v *VirtualDrive) Drives(ctx context.Context) ([]*Drive, error) {
	ids, err := v.DriveIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Drive, 0, len(ids))
	for _, id := range ids {
		e, s, ok := strings.Cut(id, ":")
		if !ok {
			continue
		}
		encl, err1 := strconv.Atoi(e)
		slot, err2 := strconv.Atoi(s)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, newDrive(v.r, v.ctl, encl, slot))
	}
	return out, nil
}

// Cache policy setters take the storcli values: wrcache wt|wb|awb,
// rdcache ra|nora, iopolicy cached|direct, pdcache on|off|default.

func (v *VirtualDrive) SetWriteCache(ctx context.Context, value string) (map[string]any, error) {
	return commandStatus(ctx, v.r, v.name, "set", "wrcache="+value)
}

func (v *VirtualDrive) SetReadCache(ctx context.Context, value string) (map[string]any, error) {
	return commandStatus(ctx, v.r, v.name, "set", "rdcache="+value)
}

func (v *VirtualDrive) SetIOPolicy(ctx context.Context, value string) (map[string]any, error) {
	return commandStatus(ctx, v.r, v.name, "set", "iopolicy="+value)
}

func (v *VirtualDrive) SetDiskCache(ctx context.Context, value string) (map[string]any, error) {
	return commandStatus(ctx, v.r, v.name, "set", "pdcache="+value)
}

// WriteCache returns awb, wb or wt from the Cache column.
func (v *VirtualDrive) WriteCache(ctx context.Context) (string, error) {
	row, err := v.row(ctx)
	if err != nil {
		return "", err
	}
	cache := asString(row["Cache"])
	switch {
	case strings.Contains(cache, "AWB"):
		return "awb", nil
	case strings.Contains(cache, "WB"):
		return "wb", nil
	}
	return "wt", nil
}

// ReadCache returns nora or ra from the Cache column.
func (v *VirtualDrive) ReadCache(ctx context.Context) (string, error) {
	row, err := v.row(ctx)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(asString(row["Cache"]), "NR") {
		return "nora", nil
	}
	return "ra", nil
}

// IOPolicy returns direct or cached from the Cache column.
func (v *VirtualDrive) IOPolicy(ctx context.Context) (string, error) {
	row, err := v.row(ctx)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(asString(row["Cache"]), "D") {
		return "direct", nil
	}
	return "cached", nil
}

// InitStart starts a fast initialization, or a full one when full is set.
// force is required when the drive holds user data.
func (v *VirtualDrive) InitStart(ctx context.Context, full, force bool) (map[string]any, error) {
	args := []string{"start", "init"}
	if full {
		args = append(args, "full")
	}
	if force {
		args = append(args, "force")
	}
	return commandStatus(ctx, v.r, v.name, args...)
}

// InitStop stops an initialization. It cannot be resumed.
func (v *VirtualDrive) InitStop(ctx context.Context) (map[string]any, error) {
	return commandStatus(ctx, v.r, v.name, "stop", "init")
}

func (v *VirtualDrive) InitRunning(ctx context.Context) (bool, error) {
	op, err := v.operation(ctx, "init")
	if err != nil {
		return false, err
	}
	return asString(op["Status"]) == "In progress", nil
}

// Progress returns the percentage of the init, cc or migrate operation.
// An idle operation reports "100".
func (v *VirtualDrive) Progress(ctx context.Context, what string) (string, error) {
	op, err := v.operation(ctx, what)
	if err != nil {
		return "", err
	}
	p := asString(op["Progress%"])
	if p == "-" {
		return "100", nil
	}
	return p, nil
}

// Delete removes the virtual drive. force is required when the drive
// carries a valid MBR.
func (v *VirtualDrive) Delete(ctx context.Context, force bool) (map[string]any, error) {
	args := []string{"del"}
	if force {
		args = append(args, "force")
	}
	return commandStatus(ctx, v.r, v.name, args...)
}
