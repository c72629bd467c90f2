package storcli_test

import (
	"errors"
	"testing"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

const partialEnvelope = `{"Controllers":[
{"Command Status":{"Controller":0,"Status":"Success","Description":"None"},"Response Data":{"Controller Status":"Optimal"}},
{"Command Status":{"Controller":1,"Status":"Failure","Description":"Show Controller Failed","Detailed Status":[{"ErrMsg":"Controller is busy","ErrCd":7}]}}
]}`

func TestParseSuccessEnvelope(t *testing.T) {
	resp, err := storcli.Parse(storcli.RawResult{Stdout: []byte(successEnvelope)}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK() || resp.ReturnCode != 0 || !resp.VendorCode {
		t.Fatalf("resp = %+v, want vendor success", resp)
	}
	basics, _ := resp.Data()["Basics"].(map[string]any)
	if basics["Model"] != "PERC H730P Mini" {
		t.Fatalf("Basics.Model = %v", basics["Model"])
	}
	if v := resp.CommandStatus()["CLI Version"]; v != "007.1017.0000.0000 May 10, 2019" {
		t.Fatalf("CLI Version = %v", v)
	}
}

func TestParseTolerates(t *testing.T) {
	tests := []struct {
		name       string
		raw        storcli.RawResult
		status     string
		code       int
		vendorCode bool
		detail     string
	}{
		{
			name:       "exit 0 with failure body",
			raw:        storcli.RawResult{Stdout: []byte(notFoundEnvelope)},
			status:     storcli.StatusFailure,
			code:       255,
			vendorCode: true,
			detail:     "Controller 3 not found",
		},
		{
			name:   "non-zero exit with stderr only",
			raw:    storcli.RawResult{ExitCode: 127, Stderr: []byte("storcli64: error while loading shared libraries\n")},
			status: storcli.StatusFailure,
			code:   127,
			detail: "storcli64: error while loading shared libraries",
		},
		{
			name:   "non-zero exit with garbage stdout",
			raw:    storcli.RawResult{ExitCode: 2, Stdout: []byte("Segmentation fault\n")},
			status: storcli.StatusFailure,
			code:   2,
			detail: "Segmentation fault",
		},
		{
			name:   "success body with non-zero exit",
			raw:    storcli.RawResult{ExitCode: 3, Stdout: []byte(successEnvelope)},
			status: storcli.StatusFailure,
			code:   3,
			detail: "exit status 3",
		},
		{
			name:       "failure by description only",
			raw:        storcli.RawResult{Stdout: []byte(`{"Controllers":[{"Command Status":{"Status":"Failure","Description":"Incomplete foreign configuration"}}]}`)},
			status:     storcli.StatusFailure,
			code:       59,
			vendorCode: true,
			detail:     "Incomplete foreign configuration",
		},
		{
			name:   "banner fallback",
			raw:    storcli.RawResult{Stdout: []byte("Invalid Controller Number\nStorage Command Line Tool  Ver 007.1017.0000.0000\n")},
			status: storcli.StatusFailure,
			detail: "Invalid Controller Number",
		},
		{
			name:   "key value fallback",
			raw:    storcli.RawResult{Stdout: []byte("CLI Version = 007.1017.0000.0000\nStatus Code = 0\nStatus = Success\nDescription = None\n")},
			status: storcli.StatusSuccess,
			vendorCode: true,
		},
		{
			name:       "noise before the envelope",
			raw:        storcli.RawResult{Stdout: []byte("WARNING: old firmware\n" + successEnvelope)},
			status:     storcli.StatusSuccess,
			vendorCode: true,
			detail:     "None",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := storcli.Parse(tt.raw, true)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Status != tt.status {
				t.Fatalf("status = %q, want %q", resp.Status, tt.status)
			}
			if resp.ReturnCode != tt.code {
				t.Fatalf("return code = %d, want %d", resp.ReturnCode, tt.code)
			}
			if resp.VendorCode != tt.vendorCode {
				t.Fatalf("vendor code = %v, want %v", resp.VendorCode, tt.vendorCode)
			}
			if resp.Detail != tt.detail {
				t.Fatalf("detail = %q, want %q", resp.Detail, tt.detail)
			}
		})
	}
}

func TestParsePartialSuccess(t *testing.T) {
	resp, err := storcli.Parse(storcli.RawResult{Stdout: []byte(partialEnvelope)}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OK() || !resp.Partial {
		t.Fatalf("status = %q partial = %v, want Failure and partial", resp.Status, resp.Partial)
	}
	if len(resp.Controllers) != 2 {
		t.Fatalf("controllers = %d, want 2", len(resp.Controllers))
	}
	if !resp.Controllers[0].OK() || resp.Controllers[0].Data["Controller Status"] != "Optimal" {
		t.Fatalf("first controller lost its data: %+v", resp.Controllers[0])
	}
	if resp.ReturnCode != 7 || resp.Detail != "Controller is busy" {
		t.Fatalf("code = %d detail = %q, want 7 and the ErrMsg", resp.ReturnCode, resp.Detail)
	}
}

func TestParseNonJSON(t *testing.T) {
	for _, out := range []string{"not json", `"not json"`, "[1,2,3]", ""} {
		_, err := storcli.Parse(storcli.RawResult{Stdout: []byte(out)}, true)
		if !errors.Is(err, storcli.ErrNonJSONResponse) {
			t.Fatalf("Parse(%q) err = %v, want NonJSONResponse", out, err)
		}
	}

	resp, err := storcli.Parse(storcli.RawResult{Stdout: []byte("not json")}, false)
	if err != nil {
		t.Fatalf("text command: unexpected error: %v", err)
	}
	if !resp.OK() || resp.Output != "not json" {
		t.Fatalf("text command: resp = %+v", resp)
	}
}
