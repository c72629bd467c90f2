package raid

import (
	"context"
	"fmt"
	"strings"
)

// Drive is a physical drive, /cN/eE/sS.
type Drive struct {
	r    Runner
	ctl  int
	encl int
	slot int
	name string
}

func newDrive(r Runner, ctl, encl, slot int) *Drive {
	return &Drive{r: r, ctl: ctl, encl: encl, slot: slot, name: fmt.Sprintf("/c%d/e%d/s%d", ctl, encl, slot)}
}

func (d *Drive) ID() int           { return d.slot }
func (d *Drive) EnclosureID() int  { return d.encl }
func (d *Drive) ControllerID() int { return d.ctl }
func (d *Drive) Path() string      { return d.name }

// info returns the drive's line of the "show" table.
func (d *Drive) info(ctx context.Context) (map[string]any, error) {
	out, err := data(ctx, d.r, d.name, []string{"show"})
	if err != nil {
		return nil, err
	}
	rows := asList(out["Drive Information"])
	if len(rows) == 0 {
		return nil, missingKey(d.name+" show", "Drive Information")
	}
	return rows[0], nil
}

// detailed returns the named block of "show all"'s detailed information
// ("Device attributes", "State").
func (d *Drive) detailed(ctx context.Context, block string) (map[string]any, error) {
	facts, err := d.Facts(ctx)
	if err != nil {
		return nil, err
	}
	prefix := "Drive " + d.name
	info := asMap(facts[prefix+" - Detailed Information"])
	b := asMap(info[prefix+" "+block])
	if b == nil {
		return nil, missingKey(d.name+" show all", prefix+" "+block)
	}
	return b, nil
}

func (d *Drive) Facts(ctx context.Context) (map[string]any, error) {
	return data(ctx, d.r, d.name, []string{"show", "all"})
}

func (d *Drive) State(ctx context.Context) (DriveState, error) {
	row, err := d.info(ctx)
	if err != nil {
		return "", err
	}
	return ParseDriveState(asString(row["State"]))
}

// SetState moves the drive to one of the settable states.
func (d *Drive) SetState(ctx context.Context, state DriveState, force bool) (map[string]any, error) {
	arg, err := state.SetArg()
	if err != nil {
		return nil, err
	}
	args := []string{"set", arg}
	if force {
		args = append(args, "force")
	}
	return commandStatus(ctx, d.r, d.name, args...)
}

func (d *Drive) field(ctx context.Context, key string) (string, error) {
	row, err := d.info(ctx)
	if err != nil {
		return "", err
	}
	return asString(row[key]), nil
}

func (d *Drive) Size(ctx context.Context) (string, error)      { return d.field(ctx, "Size") }
func (d *Drive) Interface(ctx context.Context) (string, error) { return d.field(ctx, "Intf") }
func (d *Drive) Medium(ctx context.Context) (string, error)    { return d.field(ctx, "Med") }
func (d *Drive) Model(ctx context.Context) (string, error)     { return d.field(ctx, "Model") }

// VirtualDriveID returns the drive group, or false when unassigned.
func (d *Drive) VirtualDriveID(ctx context.Context) (int, bool, error) {
	row, err := d.info(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok := asInt(row["DG"])
	return id, ok, nil
}

func (d *Drive) attribute(ctx context.Context, key string) (string, error) {
	attrs, err := d.detailed(ctx, "Device attributes")
	if err != nil {
		return "", err
	}
	return asString(attrs[key]), nil
}

func (d *Drive) Serial(ctx context.Context) (string, error) {
	sn, err := d.attribute(ctx, "SN")
	return strings.ToUpper(sn), err
}

func (d *Drive) WWN(ctx context.Context) (string, error) {
	wwn, err := d.attribute(ctx, "WWN")
	return strings.ToUpper(wwn), err
}

func (d *Drive) Firmware(ctx context.Context) (string, error) {
	return d.attribute(ctx, "Firmware Revision")
}

// Spin returns "up" or "down".
func (d *Drive) Spin(ctx context.Context) (string, error) {
	sp, err := d.field(ctx, "Sp")
	if err != nil {
		return "", err
	}
	if sp == "U" {
		return "up", nil
	}
	return "down", nil
}

// SetSpin spins the drive up or down.
func (d *Drive) SetSpin(ctx context.Context, value string) (map[string]any, error) {
	switch value {
	case "up":
		value = "spinup"
	case "down":
		value = "spindown"
	}
	return commandStatus(ctx, d.r, d.name, value)
}

// Locate starts or stops the locate LED.
func (d *Drive) Locate(ctx context.Context, on bool) (map[string]any, error) {
	verb := "stop"
	if on {
		verb = "start"
	}
	return commandStatus(ctx, d.r, d.name, verb, "locate")
}

// DriveMetrics are the health counters of "show all".
type DriveMetrics struct {
	State             string `json:"state"`
	ShieldErrors      string `json:"shield_errors,omitempty"`
	MediaErrors       string `json:"media_errors,omitempty"`
	OtherErrors       string `json:"other_errors,omitempty"`
	PredictiveFailure string `json:"predictive_failure"`
	Temperature       string `json:"temperature,omitempty"`
	SmartAlert        string `json:"smart_alert"`
}

func (d *Drive) Metrics(ctx context.Context) (DriveMetrics, error) {
	var m DriveMetrics
	st, err := d.State(ctx)
	if err != nil {
		return m, err
	}
	m.State = strings.ToLower(st.String())
	state, err := d.detailed(ctx, "State")
	if err != nil {
		return m, err
	}
	m.ShieldErrors = asString(state["Shield Counter"])
	m.MediaErrors = asString(state["Media Error Count"])
	m.OtherErrors = asString(state["Other Error Count"])
	m.PredictiveFailure = asString(state["Predictive Failure Count"])
	m.Temperature = strings.TrimSpace(strings.SplitN(asString(state["Drive Temperature"]), "C", 2)[0])
	m.SmartAlert = asString(state["S.M.A.R.T alert flagged by drive"])
	return m, nil
}
