package raid

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

// ControllerMetrics summarizes a controller's "show all".
type ControllerMetrics struct {
	State                     string         `json:"state"`
	MemoryCorrectableErrors   string         `json:"memory_correctable_error"`
	MemoryUncorrectableErrors string         `json:"memory_uncorrectable_error"`
	DriveGroups               string         `json:"drive_groups"`
	VirtualDrives             string         `json:"virtual_drives"`
	VirtualDrivesNonOptimal   map[string]int `json:"virtual_drives_non_optimal"`
	PhysicalDrives            string         `json:"physical_drives"`
	PhysicalDrivesNonOptimal  map[string]int `json:"physical_drives_non_optimal"`
	ROCTemperature            string         `json:"roc_temperature"`
	ControllerTemperature     string         `json:"ctl_temperature"`
}

// Metrics reads the controller summary and counts virtual and physical
// drives that are not in a good state.
func (c *Controller) Metrics(ctx context.Context) (ControllerMetrics, error) {
	m := ControllerMetrics{
		VirtualDrivesNonOptimal:  map[string]int{},
		PhysicalDrivesNonOptimal: map[string]int{},
	}
	facts, err := c.Facts(ctx)
	if err != nil {
		return m, err
	}
	status := asMap(facts["Status"])
	m.State = strings.ToLower(asString(status["Controller Status"]))
	m.MemoryCorrectableErrors = asString(status["Memory Correctable Errors"])
	m.MemoryUncorrectableErrors = asString(status["Memory Uncorrectable Errors"])
	m.DriveGroups = countOrZero(facts["Drive Groups"])
	m.VirtualDrives = countOrZero(facts["Virtual Drives"])
	m.PhysicalDrives = countOrZero(facts["Physical Drives"])

	hw := asMap(facts["HwCfg"])
	m.ROCTemperature = sensor(hw, "Temperature Sensor for ROC", "ROC temperature(Degree Celsius)")
	m.ControllerTemperature = sensor(hw, "Temperature Sensor for Controller", "Controller temperature(Degree Celsius)")

	vds, err := c.VirtualDrives(ctx)
	if err != nil {
		return m, err
	}
	for _, vd := range vds {
		st, err := vd.State(ctx)
		if err != nil {
			return m, err
		}
		if !st.Good() {
			m.VirtualDrivesNonOptimal[string(st)]++
		}
	}

	encls, err := c.Enclosures(ctx)
	if err != nil {
		return m, err
	}
	for _, e := range encls {
		drives, err := e.Drives(ctx)
		if err != nil {
			return m, err
		}
		for _, d := range drives {
			st, err := d.State(ctx)
			if err != nil {
				return m, err
			}
			if !st.Good() {
				m.PhysicalDrivesNonOptimal[st.String()]++
			}
		}
	}
	return m, nil
}

func countOrZero(v any) string {
	if v == nil {
		return "0"
	}
	return asString(v)
}

func sensor(hw map[string]any, presence, value string) string {
	if asString(hw[presence]) == "Present" {
		return asString(hw[value])
	}
	return "unknown"
}

// VirtualDriveMetrics are a virtual drive's state and operation progress.
type VirtualDriveMetrics struct {
	State           string `json:"state"`
	InitProgress    string `json:"init_progress"`
	CCProgress      string `json:"cc_progress"`
	MigrateProgress string `json:"migrate_progress"`
}

func (v *VirtualDrive) Metrics(ctx context.Context) (VirtualDriveMetrics, error) {
	var m VirtualDriveMetrics
	st, err := v.State(ctx)
	if err != nil {
		return m, err
	}
	m.State = string(st)
	m.InitProgress = v.progressOrUnknown(ctx, "init")
	m.CCProgress = v.progressOrUnknown(ctx, "cc")
	m.MigrateProgress = v.progressOrUnknown(ctx, "migrate")
	return m, nil
}

func (v *VirtualDrive) progressOrUnknown(ctx context.Context, what string) string {
	p, err := v.Progress(ctx, what)
	if err != nil || p == "" {
		return "unknown"
	}
	return p
}

// Report is the metrics tree of every controller, keyed by id at each
// level.
type Report struct {
	Controllers map[int]*ControllerReport `json:"controller"`
}

type ControllerReport struct {
	Metric        ControllerMetrics           `json:"metric"`
	VirtualDrives map[int]*VirtualDriveReport `json:"virtualdrive"`
	Enclosures    map[int]*EnclosureReport    `json:"enclosure"`
	CacheVault    map[int]*CacheVaultReport   `json:"cachevault"`
}

type VirtualDriveReport struct {
	Metric     VirtualDriveMetrics      `json:"metric"`
	Enclosures map[int]*EnclosureReport `json:"enclosure"`
}

type EnclosureReport struct {
	Metric map[string]string    `json:"metric"`
	Drives map[int]*DriveReport `json:"drive"`
}

type DriveReport struct {
	Metric DriveMetrics `json:"metric"`
}

type CacheVaultReport struct {
	Metric *CacheVaultMetrics `json:"metric,omitempty"`
}

// CollectMetrics walks every controller. Controllers are collected
// concurrently, at most parallel at a time (1 when parallel <= 0); a
// controller without a cache vault reports an empty cachevault metric.
func CollectMetrics(ctx context.Context, r Runner, parallel int) (*Report, error) {
	ctls, err := NewControllers(r).All(ctx)
	if err != nil {
		return nil, err
	}
	if parallel <= 0 {
		parallel = 1
	}

	rep := &Report{Controllers: make(map[int]*ControllerReport, len(ctls))}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, ctl := range ctls {
		ctl := ctl
		g.Go(func() error {
			cr, err := collectController(gctx, ctl)
			if err != nil {
				return err
			}
			mu.Lock()
			rep.Controllers[ctl.ID()] = cr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rep, nil
}

func collectController(ctx context.Context, ctl *Controller) (*ControllerReport, error) {
	m, err := ctl.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	cr := &ControllerReport{
		Metric:        m,
		VirtualDrives: map[int]*VirtualDriveReport{},
		Enclosures:    map[int]*EnclosureReport{},
		CacheVault:    map[int]*CacheVaultReport{0: {}},
	}

	vds, err := ctl.VirtualDrives(ctx)
	if err != nil {
		return nil, err
	}
	for _, vd := range vds {
		vm, err := vd.Metrics(ctx)
		if err != nil {
			return nil, err
		}
		vr := &VirtualDriveReport{Metric: vm, Enclosures: map[int]*EnclosureReport{}}
		drives, err := vd.Drives(ctx)
		if err != nil {
			return nil, err
		}
		if err := addDrives(ctx, vr.Enclosures, drives); err != nil {
			return nil, err
		}
		cr.VirtualDrives[vd.ID()] = vr
	}

	encls, err := ctl.Enclosures(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range encls {
		drives, err := e.Drives(ctx)
		if err != nil {
			return nil, err
		}
		cr.Enclosures[e.ID()] = &EnclosureReport{Metric: map[string]string{}, Drives: map[int]*DriveReport{}}
		if err := addDrives(ctx, cr.Enclosures, drives); err != nil {
			return nil, err
		}
	}

	cv, err := ctl.CacheVault(ctx)
	switch {
	case err == nil:
		cm, err := cv.Metrics(ctx)
		if err != nil {
			return nil, err
		}
		cr.CacheVault[0].Metric = &cm
	case storcli.KindOf(err) != storcli.KindDeviceNotFound:
		return nil, err
	}
	return cr, nil
}

func addDrives(ctx context.Context, encls map[int]*EnclosureReport, drives []*Drive) error {
	for _, d := range drives {
		dm, err := d.Metrics(ctx)
		if err != nil {
			return err
		}
		er, ok := encls[d.EnclosureID()]
		if !ok {
			er = &EnclosureReport{Metric: map[string]string{}, Drives: map[int]*DriveReport{}}
			encls[d.EnclosureID()] = er
		}
		er.Drives[d.ID()] = &DriveReport{Metric: dm}
	}
	return nil
}
