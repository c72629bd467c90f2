package raid

import (
	"fmt"
	"strings"
)

// DriveState is a physical drive state as storcli abbreviates it in the
// State column.
type DriveState string

const (
	DriveDHS     DriveState = "DHS"     // Dedicated Hot Spare
	DriveUGood   DriveState = "UGood"   // Unconfigured Good
	DriveGHS     DriveState = "GHS"     // Global Hotspare
	DriveUBad    DriveState = "UBad"    // Unconfigured Bad
	DriveSntze   DriveState = "Sntze"   // Sanitize
	DriveOnln    DriveState = "Onln"    // Online
	DriveOffln   DriveState = "Offln"   // Offline
	DriveFailed  DriveState = "Failed"  // Failed
	DriveSED     DriveState = "SED"     // Self Encryptive Drive
	DriveUGUnsp  DriveState = "UGUnsp"  // UGood Unsupported
	DriveUGShld  DriveState = "UGShld"  // UGood shielded
	DriveHSPShld DriveState = "HSPShld" // Hotspare shielded
	DriveCFShld  DriveState = "CFShld"  // Configured shielded
	DriveCpybck  DriveState = "Cpybck"  // CopyBack
	DriveCBShld  DriveState = "CBShld"  // Copyback Shielded
	DriveUBUnsp  DriveState = "UBUnsp"  // UBad Unsupported
	DriveRbld    DriveState = "Rbld"    // Rebuild
	DriveMissing DriveState = "Missing" // Missing
	DriveJBOD    DriveState = "JBOD"    // JBOD
)

var driveStateNames = map[DriveState]string{
	DriveDHS:     "Dedicated Hot Spare",
	DriveUGood:   "Unconfigured Good",
	DriveGHS:     "Global Hotspare",
	DriveUBad:    "Unconfigured Bad",
	DriveSntze:   "Sanitize",
	DriveOnln:    "Online",
	DriveOffln:   "Offline",
	DriveFailed:  "Failed",
	DriveSED:     "Self Encryptive Drive",
	DriveUGUnsp:  "UGood Unsupported",
	DriveUGShld:  "UGood shielded",
	DriveHSPShld: "Hotspare shielded",
	DriveCFShld:  "Configured shielded",
	DriveCpybck:  "CopyBack",
	DriveCBShld:  "Copyback Shielded",
	DriveUBUnsp:  "UBad Unsupported",
	DriveRbld:    "Rebuild",
	DriveMissing: "Missing",
	DriveJBOD:    "JBOD",
}

var driveStateAliases = map[string]DriveState{
	"good":               DriveUGood,
	"bad":                DriveUBad,
	"dedicated":          DriveDHS,
	"hotspare":           DriveGHS,
	"unconfigured":       DriveUGood,
	"unconfigured(good)": DriveUGood,
	"unconfigured(bad)":  DriveUBad,
}

// ParseDriveState accepts the abbreviation, the long name or one of the
// common aliases ("good", "bad", "hotspare"...), case-insensitively.
func ParseDriveState(s string) (DriveState, error) {
	s = strings.TrimSpace(s)
	for st, long := range driveStateNames {
		if strings.EqualFold(string(st), s) || strings.EqualFold(long, s) {
			return st, nil
		}
	}
	if st, ok := driveStateAliases[strings.ToLower(s)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("invalid drive state %q", s)
}

// String returns the long name ("Online").
func (s DriveState) String() string {
	if long, ok := driveStateNames[s]; ok {
		return long
	}
	return string(s)
}

// Good reports whether the drive needs no attention.
func (s DriveState) Good() bool {
	switch s {
	case DriveDHS, DriveUGood, DriveGHS, DriveOnln, DriveSED, DriveUGShld,
		DriveHSPShld, DriveCFShld, DriveCpybck, DriveCBShld, DriveRbld, DriveJBOD:
		return true
	}
	return false
}

// Configured reports whether the drive belongs to a configuration.
func (s DriveState) Configured() bool {
	switch s {
	case DriveDHS, DriveGHS, DriveOnln, DriveSED, DriveHSPShld, DriveCFShld,
		DriveCpybck, DriveCBShld, DriveRbld, DriveJBOD:
		return true
	}
	return false
}

// SetArg is the argument "set" expects for s. Only online, offline,
// missing, good and jbod can be set directly.
func (s DriveState) SetArg() (string, error) {
	switch s {
	case DriveOnln:
		return "online", nil
	case DriveOffln:
		return "offline", nil
	case DriveMissing:
		return "missing", nil
	case DriveUGood:
		return "good", nil
	case DriveJBOD:
		return "jbod", nil
	}
	return "", fmt.Errorf("drive state %s cannot be set", s)
}

// VDState is a virtual drive state.
type VDState string

const (
	VDOptimal           VDState = "optimal"
	VDRecovery          VDState = "recovery"
	VDOffline           VDState = "offline"
	VDPartiallyDegraded VDState = "degraded_partially"
	VDDegraded          VDState = "degraded"
)

// ParseVDState maps the State column (Optl, Rec, OfLn, Pdgd, Dgrd) or a
// long name. Anything unknown is degraded.
func ParseVDState(s string) VDState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "optl", "optimal":
		return VDOptimal
	case "rec", "recovery":
		return VDRecovery
	case "ofln", "offline":
		return VDOffline
	case "pdgd", "partially degraded", "degraded_partially":
		return VDPartiallyDegraded
	}
	return VDDegraded
}

func (s VDState) Good() bool { return s == VDOptimal }
