package raid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

// Controllers lists the controllers visible to the binary.
type Controllers struct {
	r Runner
}

func NewControllers(r Runner) Controllers { return Controllers{r: r} }

// IDs returns controller ids from the "show" overview. An incomplete
// foreign configuration does not fail the listing.
func (c Controllers) IDs(ctx context.Context) ([]int, error) {
	d, err := data(ctx, c.r, "", []string{"show"},
		storcli.WithAllowCodes(storcli.CodeIncompleteForeignConfiguration))
	if err != nil {
		return nil, err
	}
	if n, ok := asInt(d["Number of Controllers"]); ok && n == 0 {
		return nil, nil
	}
	overview, _ := firstKey(d, "System Overview", "IT System Overview")
	var ids []int
	for _, row := range asList(overview) {
		if id, ok := asInt(row["Ctl"]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// All returns a handle for every controller.
func (c Controllers) All(ctx context.Context) ([]*Controller, error) {
	ids, err := c.IDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Controller, 0, len(ids))
	for _, id := range ids {
		out = append(out, newController(c.r, id))
	}
	return out, nil
}

// Get returns controller id, or a DeviceNotFound error when it does not
// answer "show".
func (c Controllers) Get(ctx context.Context, id int) (*Controller, error) {
	ctl := newController(c.r, id)
	if err := exists(ctx, c.r, "controller", ctl.name); err != nil {
		return nil, err
	}
	return ctl, nil
}

// Controller is one controller, /cN.
type Controller struct {
	r    Runner
	id   int
	name string
}

func newController(r Runner, id int) *Controller {
	return &Controller{r: r, id: id, name: "/c" + strconv.Itoa(id)}
}

func (c *Controller) ID() int      { return c.id }
func (c *Controller) Name() string { return c.name }

// Controller commands tolerate an incomplete foreign configuration.
func (c *Controller) data(ctx context.Context, args ...string) (map[string]any, error) {
	return c.dataAt(ctx, "", args...)
}

// dataAt runs args against a sub-object path such as "/vall".
func (c *Controller) dataAt(ctx context.Context, sub string, args ...string) (map[string]any, error) {
	return data(ctx, c.r, c.name+sub, args,
		storcli.WithAllowCodes(storcli.CodeIncompleteForeignConfiguration))
}

func (c *Controller) set(ctx context.Context, args ...string) (map[string]any, error) {
	return c.setAt(ctx, "", args...)
}

func (c *Controller) setAt(ctx context.Context, sub string, args ...string) (map[string]any, error) {
	res, err := run(ctx, c.r, c.name+sub, args,
		storcli.WithAllowCodes(storcli.CodeIncompleteForeignConfiguration))
	if err != nil {
		return nil, err
	}
	return res.Response.CommandStatus(), nil
}

func (c *Controller) properties(ctx context.Context, what string) (map[string]string, error) {
	d, err := c.data(ctx, "show", what)
	if err != nil {
		return nil, err
	}
	rows, ok := d["Controller Properties"]
	if !ok {
		return nil, missingKey(c.name+" show "+what, "Controller Properties")
	}
	return properties(asList(rows), "Ctrl_Prop"), nil
}

// Facts returns the raw "show all" Response Data.
func (c *Controller) Facts(ctx context.Context) (map[string]any, error) {
	return c.data(ctx, "show", "all")
}

// VirtualDrives returns the controller's virtual drives.
func (c *Controller) VirtualDrives(ctx context.Context) ([]*VirtualDrive, error) {
	d, err := c.dataAt(ctx, "/vall", "show")
	if err != nil {
		if storcli.KindOf(err) == storcli.KindDeviceNotFound {
			return nil, nil
		}
		return nil, err
	}
	var out []*VirtualDrive
	for _, row := range asList(d["Virtual Drives"]) {
		_, vd, ok := strings.Cut(asString(row["DG/VD"]), "/")
		if !ok {
			continue
		}
		if id, err := strconv.Atoi(vd); err == nil {
			out = append(out, newVirtualDrive(c.r, c.id, id))
		}
	}
	return out, nil
}

// VirtualDrive returns virtual drive id after checking it exists.
func (c *Controller) VirtualDrive(ctx context.Context, id int) (*VirtualDrive, error) {
	vd := newVirtualDrive(c.r, c.id, id)
	if err := exists(ctx, c.r, "virtual drive", vd.name); err != nil {
		return nil, err
	}
	return vd, nil
}

// Enclosures returns the controller's enclosures.
func (c *Controller) Enclosures(ctx context.Context) ([]*Enclosure, error) {
	d, err := c.dataAt(ctx, "/eall", "show")
	if err != nil {
		return nil, err
	}
	var out []*Enclosure
	for _, row := range asList(d["Properties"]) {
		if id, ok := asInt(row["EID"]); ok {
			out = append(out, newEnclosure(c.r, c.id, id))
		}
	}
	return out, nil
}

// DriveIDs returns every drive as "enclosure:slot".
func (c *Controller) DriveIDs(ctx context.Context) ([]string, error) {
	encls, err := c.Enclosures(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range encls {
		slots, err := e.SlotIDs(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range slots {
			out = append(out, fmt.Sprintf("%d:%d", e.ID(), s))
		}
	}
	return out, nil
}

// CacheVault returns the controller's cache vault. A controller without one
// yields a DeviceNotFound error.
func (c *Controller) CacheVault(ctx context.Context) (*CacheVault, error) {
	cv := &CacheVault{r: c.r, ctl: c.id, name: c.name + "/cv"}
	if err := exists(ctx, c.r, "cache vault", cv.name); err != nil {
		return nil, err
	}
	return cv, nil
}

// VDSpec describes a virtual drive to create.
type VDSpec struct {
	Name   string
	RAID   string // level without the "r" prefix: "0", "1", "10", "00"...
	Drives string // drives expression, see ExpandDriveIDs
	Strip  string // strip size in KB, default "64"
	// PDperArray is inferred for spanned levels when zero.
	PDperArray int
}

// CreateVD adds a virtual drive and returns it, or nil when no virtual
// drive with the requested name shows up afterwards.
func (c *Controller) CreateVD(ctx context.Context, spec VDSpec) (*VirtualDrive, error) {
	if spec.Strip == "" {
		spec.Strip = "64"
	}
	args := []string{
		"add", "vd", "r" + spec.RAID,
		"name=" + spec.Name,
		"drives=" + spec.Drives,
		"strip=" + spec.Strip,
	}
	pd := spec.PDperArray
	if pd == 0 {
		if n, err := CountDrives(spec.Drives); err == nil {
			pd, _ = pdPerArray(spec.RAID, n)
		} else if spec.RAID == "00" {
			pd = 1
		}
	}
	if pd > 0 {
		args = append(args, "PDperArray="+strconv.Itoa(pd))
	}
	if _, err := c.set(ctx, args...); err != nil {
		return nil, err
	}

	vds, err := c.VirtualDrives(ctx)
	if err != nil {
		return nil, err
	}
	for _, vd := range vds {
		name, err := vd.Name(ctx)
		if err == nil && name == spec.Name {
			return vd, nil
		}
	}
	return nil, nil
}

// AutoRebuild returns "on" or "off".
func (c *Controller) AutoRebuild(ctx context.Context) (string, error) {
	return c.firstProperty(ctx, "autorebuild")
}

func (c *Controller) SetAutoRebuild(ctx context.Context, value string) (map[string]any, error) {
	return c.set(ctx, "set", "autorebuild="+value)
}

// ForeignAutoImport returns "on" or "off".
func (c *Controller) ForeignAutoImport(ctx context.Context) (string, error) {
	return c.firstProperty(ctx, "foreignautoimport")
}

func (c *Controller) SetForeignAutoImport(ctx context.Context, value string) (map[string]any, error) {
	return c.set(ctx, "set", "foreignautoimport="+value)
}

func (c *Controller) firstProperty(ctx context.Context, what string) (string, error) {
	d, err := c.data(ctx, "show", what)
	if err != nil {
		return "", err
	}
	rows := asList(d["Controller Properties"])
	if len(rows) == 0 {
		return "", missingKey(c.name+" show "+what, "Controller Properties")
	}
	return onOff(asString(rows[0]["Value"])), nil
}

// PatrolRead returns "on" unless PR Mode is Disable.
func (c *Controller) PatrolRead(ctx context.Context) (string, error) {
	props, err := c.properties(ctx, "patrolread")
	if err != nil {
		return "", err
	}
	if mode, ok := props["PR Mode"]; ok && mode != "Disable" {
		return "on", nil
	}
	return "off", nil
}

// SetPatrolRead enables or disables patrol read. mode (auto or manual)
// applies when enabling and defaults to manual.
func (c *Controller) SetPatrolRead(ctx context.Context, value, mode string) (map[string]any, error) {
	args := []string{"set", "patrolread=" + value}
	if value == "on" {
		if mode == "" {
			mode = "manual"
		}
		args = append(args, "mode="+mode)
	}
	return c.set(ctx, args...)
}

func (c *Controller) PatrolReadStart(ctx context.Context) (map[string]any, error) {
	return c.set(ctx, "start", "patrolread")
}

func (c *Controller) PatrolReadStop(ctx context.Context) (map[string]any, error) {
	return c.set(ctx, "stop", "patrolread")
}

func (c *Controller) PatrolReadPause(ctx context.Context) (map[string]any, error) {
	return c.set(ctx, "pause", "patrolread")
}

func (c *Controller) PatrolReadResume(ctx context.Context) (map[string]any, error) {
	return c.set(ctx, "resume", "patrolread")
}

// PatrolReadRunning reports whether PR Current State is Active.
func (c *Controller) PatrolReadRunning(ctx context.Context) (bool, error) {
	props, err := c.properties(ctx, "patrolread")
	if err != nil {
		return false, err
	}
	return strings.Contains(props["PR Current State"], "Active"), nil
}

// ConsistencyCheck returns "on" unless CC Operation Mode is Disabled.
func (c *Controller) ConsistencyCheck(ctx context.Context) (string, error) {
	props, err := c.properties(ctx, "cc")
	if err != nil {
		return "", err
	}
	if mode, ok := props["CC Operation Mode"]; ok && mode != "Disabled" {
		return "on", nil
	}
	return "off", nil
}

// SetConsistencyCheck sets the check mode: seq, conc or off. seq and conc
// take a start time, now when zero.
func (c *Controller) SetConsistencyCheck(ctx context.Context, value string, start time.Time) (map[string]any, error) {
	args := []string{"set", "cc=" + value}
	if value == "seq" || value == "conc" {
		if start.IsZero() {
			start = time.Now()
		}
		args = append(args, fmt.Sprintf("starttime=%s", start.Format("2006/01/02 15")))
	}
	return c.set(ctx, args...)
}

func foreignArgs(verb, securityKey string) []string {
	args := []string{verb}
	if securityKey != "" {
		args = append(args, "securitykey="+securityKey)
	}
	return args
}

// HasForeignConfigurations reports foreign drive groups or foreign drives.
func (c *Controller) HasForeignConfigurations(ctx context.Context, securityKey string) (bool, error) {
	d, err := c.dataAt(ctx, "/fall", foreignArgs("show", securityKey)...)
	if err != nil {
		return false, err
	}
	total := 0
	for _, k := range []string{"Total foreign Drive Groups", "Total Foreign PDs", "Total Locked Foreign PDs"} {
		if n, ok := asInt(d[k]); ok {
			total += n
		}
	}
	return total > 0, nil
}

// ForeignConfigurationHealthy reports false when the foreign configuration
// is incomplete.
func (c *Controller) ForeignConfigurationHealthy(ctx context.Context, securityKey string) (bool, error) {
	has, err := c.HasForeignConfigurations(ctx, securityKey)
	if err != nil || !has {
		return !has, err
	}
	_, err = data(ctx, c.r, c.name+"/fall", foreignArgs("show", securityKey))
	if err == nil {
		return true, nil
	}
	var ce *storcli.Error
	if errors.As(err, &ce) && ce.Code == storcli.CodeIncompleteForeignConfiguration {
		return false, nil
	}
	return false, err
}

func (c *Controller) DeleteForeignConfigurations(ctx context.Context, securityKey string) (map[string]any, error) {
	return c.setAt(ctx, "/fall", foreignArgs("del", securityKey)...)
}

func (c *Controller) ImportForeignConfigurations(ctx context.Context, securityKey string) (map[string]any, error) {
	return c.setAt(ctx, "/fall", foreignArgs("import", securityKey)...)
}
