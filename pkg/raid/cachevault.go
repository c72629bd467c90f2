package raid

import (
	"context"
	"strings"
)

// CacheVault is /cN/cv, the flash backup unit of the controller cache.
type CacheVault struct {
	r    Runner
	ctl  int
	name string
}

func (cv *CacheVault) ControllerID() int { return cv.ctl }

func (cv *CacheVault) Facts(ctx context.Context) (map[string]any, error) {
	return data(ctx, cv.r, cv.name, []string{"show", "all"})
}

// CacheVaultMetrics summarizes "show all".
type CacheVaultMetrics struct {
	Temperature         string `json:"temperature"`
	State               string `json:"state"`
	ReplacementRequired string `json:"replacement_required"`
	OffloadStatus       string `json:"offload_status"`
}

// Metrics reports "unknown" for any value the firmware does not print.
func (cv *CacheVault) Metrics(ctx context.Context) (CacheVaultMetrics, error) {
	m := CacheVaultMetrics{
		Temperature:         "unknown",
		State:               "unknown",
		ReplacementRequired: "unknown",
		OffloadStatus:       "unknown",
	}
	facts, err := cv.Facts(ctx)
	if err != nil {
		return m, err
	}
	info := properties(asList(facts["Cachevault_Info"]), "Property")
	if t, ok := info["Temperature"]; ok {
		if f := strings.Fields(t); len(f) > 0 {
			m.Temperature = f[0]
		}
	}
	if s, ok := info["State"]; ok {
		m.State = strings.ToLower(s)
	}
	fw := properties(asList(facts["Firmware_Status"]), "Property")
	if r, ok := fw["Replacement required"]; ok {
		m.ReplacementRequired = strings.ToLower(r)
	}
	if v, ok := fw["No space to cache offload"]; ok {
		m.OffloadStatus = "fail"
		if v == "No" {
			m.OffloadStatus = "ok"
		}
	}
	return m, nil
}
