package raid_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func ok(responseData string) string {
	return fmt.Sprintf(`{"Controllers":[{"Command Status":{"CLI Version":"007.1017.0000.0000 May 10, 2019","Controller":0,"Status":"Success","Description":"None"},"Response Data":%s}]}`, responseData)
}

func okNoData() string {
	return `{"Controllers":[{"Command Status":{"Controller":0,"Status":"Success","Description":"None"}}]}`
}

func failed(msg string, code int) string {
	return fmt.Sprintf(`{"Controllers":[{"Command Status":{"Status":"Failure","Description":"None","Detailed Status":[{"ErrMsg":%q,"ErrCd":%d}]}}]}`, msg, code)
}

// system is one controller with a RAID1 on 252:0-1, a bad drive in 252:2
// and no cache vault.
var system = map[string]string{
	"show J": ok(`{"Number of Controllers":1,"Host Name":"db1","System Overview":[{"Ctl":0,"Model":"PERC H730P Mini","Ports":8,"PDs":3,"DGs":1,"VDs":1,"Hlth":"Opt"}]}`),
	"/c0 show J": ok(`{"Product Name":"PERC H730P Mini","Serial Number":"5AF0047"}`),
	"/c0 show all J": ok(`{
		"Basics":{"Controller":0,"Model":"PERC H730P Mini"},
		"Status":{"Controller Status":"Optimal","Memory Correctable Errors":0,"Memory Uncorrectable Errors":0},
		"HwCfg":{"Temperature Sensor for ROC":"Present","ROC temperature(Degree Celsius)":61,"Temperature Sensor for Controller":"Absent"},
		"Drive Groups":1,"Virtual Drives":1,"Physical Drives":3}`),
	"/c0 show autorebuild J":       ok(`{"Controller Properties":[{"Ctrl_Prop":"AutoRebuild","Value":"ON"}]}`),
	"/c0 show foreignautoimport J": ok(`{"Controller Properties":[{"Ctrl_Prop":"ForeignAutoImport","Value":"OFF"}]}`),
	"/c0 show patrolread J":        ok(`{"Controller Properties":[{"Ctrl_Prop":"PR Mode","Value":"Auto"},{"Ctrl_Prop":"PR Current State","Value":"Active 12"}]}`),
	"/c0 show cc J":                ok(`{"Controller Properties":[{"Ctrl_Prop":"CC Operation Mode","Value":"Disabled"}]}`),
	"/c0/fall show J":              ok(`{"Total foreign Drive Groups":0}`),
	"/c0/vall show J": ok(`{"Virtual Drives":[{"DG/VD":"0/0","TYPE":"RAID1","State":"Optl","Access":"RW","Cache":"RWBD","Name":"os","Size":"446.625 GB"}]}`),
	"/c0/v0 show J":   ok(`{"Virtual Drives":[{"DG/VD":"0/0","TYPE":"RAID1","State":"Optl","Access":"RW","Cache":"RWBD","Name":"os","Size":"446.625 GB"}]}`),
	"/c0/v0 show all J": ok(`{
		"/c0/v0":[{"DG/VD":"0/0","TYPE":"RAID1","State":"Optl"}],
		"PDs for VD 0":[{"EID:Slt":"252:0","DID":0,"State":"Onln"},{"EID:Slt":"252:1","DID":1,"State":"Onln"}],
		"VD0 Properties":{"Strip Size":"64 KB","Exposed to OS":"Yes","OS Drive Name":"/dev/sda"}}`),
	"/c0/v0 show init J":    ok(`{"VD Operation Status":[{"VD":0,"Operation":"INIT","Progress%":"-","Status":"Not in progress"}]}`),
	"/c0/v0 show cc J":      ok(`{"VD Operation Status":[{"VD":0,"Operation":"CC","Progress%":"37","Status":"In progress"}]}`),
	"/c0/v0 show migrate J": ok(`{"VD Operation Status":[{"VD":0,"Operation":"Migrate","Progress%":"-","Status":"Not in progress"}]}`),
	"/c0/eall show J":       ok(`{"Properties":[{"EID":252,"State":"OK","Slots":8,"PD":3}]}`),
	"/c0/e252 show J":       ok(`{"Properties":[{"EID":252,"State":"OK","Slots":8,"PD":3}]}`),
	"/c0/e252/sall show J": ok(`{"Drive Information":[
		{"EID:Slt":"252:0","DID":0,"State":"Onln","DG":0,"Size":"446.625 GB","Intf":"SATA","Med":"SSD","Model":"SSDSC2KB480G8R","Sp":"U"},
		{"EID:Slt":"252:1","DID":1,"State":"Onln","DG":0,"Size":"446.625 GB","Intf":"SATA","Med":"SSD","Model":"SSDSC2KB480G8R","Sp":"U"},
		{"EID:Slt":"252:2","DID":2,"State":"UBad","DG":"-","Size":"1.819 TB","Intf":"SAS","Med":"HDD","Model":"ST2000NM0045","Sp":"D"}]}`),
	"/c0/cv show J": failed("Cachevault is absent", 255),
}

func init() {
	for slot, row := range []string{
		`{"EID:Slt":"252:0","DID":0,"State":"Onln","DG":0,"Size":"446.625 GB","Intf":"SATA","Med":"SSD","Model":"SSDSC2KB480G8R","Sp":"U"}`,
		`{"EID:Slt":"252:1","DID":1,"State":"Onln","DG":0,"Size":"446.625 GB","Intf":"SATA","Med":"SSD","Model":"SSDSC2KB480G8R","Sp":"U"}`,
		`{"EID:Slt":"252:2","DID":2,"State":"UBad","DG":"-","Size":"1.819 TB","Intf":"SAS","Med":"HDD","Model":"ST2000NM0045","Sp":"D"}`,
	} {
		p := fmt.Sprintf("/c0/e252/s%d", slot)
		system[p+" show J"] = ok(`{"Drive Information":[` + row + `]}`)
		system[p+" show all J"] = ok(fmt.Sprintf(`{
			"Drive %[1]s":[%[2]s],
			"Drive %[1]s - Detailed Information":{
				"Drive %[1]s State":{"Shield Counter":0,"Media Error Count":%[3]d,"Other Error Count":0,"Drive Temperature":" 31C (87.80 F)","Predictive Failure Count":0,"S.M.A.R.T alert flagged by drive":"No"},
				"Drive %[1]s Device attributes":{"SN":"phyf8470abc%[3]d","WWN":"55cd2e414f9a%[3]d","Firmware Revision":"XCV1DL67"}}}`, p, row, slot))
	}
}

// fakeCLI serves fixtures keyed by the joined argument vector. Unknown
// commands fail with an invalid command error.
type fakeCLI struct {
	mu       sync.Mutex
	fixtures map[string]string
	calls    []string
}

func newFake(t *testing.T, overrides map[string]string) (*storcli.StorCLI, *fakeCLI) {
	t.Helper()
	f := &fakeCLI{fixtures: map[string]string{}}
	for k, v := range system {
		f.fixtures[k] = v
	}
	for k, v := range overrides {
		f.fixtures[k] = v
	}
	cfg := storcli.DefaultConfig()
	cfg.Binary = "/opt/MegaRAID/storcli/storcli64"
	cfg.Invoker = storcli.InvokerFunc(f.invoke)
	return storcli.New(cfg), f
}

func (f *fakeCLI) invoke(_ context.Context, _ string, args []string, _ time.Duration) (storcli.RawResult, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	out, ok := f.fixtures[key]
	if !ok {
		if len(args) > 1 && args[1] != "show" {
			out = okNoData()
		} else {
			out = failed("Invalid command.", 1)
		}
	}
	return storcli.RawResult{Stdout: []byte(out)}, nil
}

func (f *fakeCLI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *fakeCLI) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}
