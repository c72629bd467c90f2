package storcli_test

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/WangQiHao-Charlie/storcli/pkg/storcli"
)

func failure(code int, vendor bool, detail string) storcli.Response {
	return storcli.Response{
		Status:     storcli.StatusFailure,
		ReturnCode: code,
		VendorCode: vendor,
		Detail:     detail,
	}
}

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name string
		resp storcli.Response
		want storcli.ErrorKind
	}{
		{"vendor code", failure(12, true, "Invalid device ID / select-timeout."), storcli.KindDeviceNotFound},
		{"busy code", failure(28, true, "LD Rebuild is in progress."), storcli.KindBusy},
		{"invalid command", failure(1, true, "Invalid command."), storcli.KindInvalidArguments},
		{"255 falls through to text", failure(255, true, "Controller 3 not found"), storcli.KindDeviceNotFound},
		{"255 without a known message", failure(255, true, "firmware said something new"), storcli.KindUnknownControllerError},
		{"undocumented vendor code", failure(41, true, "firmware said something new"), storcli.KindUnknownControllerError},
		{"description without code", failure(-1, false, "Patrol Read is disabled."), storcli.KindUnsupported},
		{"exit 126", failure(126, false, "sh: storcli64: Permission denied"), storcli.KindPermissionDenied},
		{"exit 127", failure(127, false, "sh: storcli64: not found"), storcli.KindBinaryNotFound},
		{"text rule", failure(1, false, "Syntax error, unrecognized option"), storcli.KindInvalidArguments},
		{"unknown text", failure(1, false, "the quick brown fox"), storcli.KindUnclassified},
		{"informational code", failure(116, true, "Status is ok but a reboot is need for the change to take effect."), storcli.KindSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := storcli.ClassifyResponse(tt.resp)
			if res.Kind != tt.want {
				t.Fatalf("kind = %s, want %s", res.Kind, tt.want)
			}
			if res.OK != (tt.want == storcli.KindSuccess) {
				t.Fatalf("OK = %v for kind %s", res.OK, res.Kind)
			}
		})
	}
}

func TestClassifyModes(t *testing.T) {
	resp := failure(12, true, "Invalid device ID / select-timeout.")

	res, err := storcli.Classify(resp, storcli.ModeResult)
	if err != nil {
		t.Fatalf("ModeResult returned error %v", err)
	}
	if res.OK || res.Kind != storcli.KindDeviceNotFound {
		t.Fatalf("res = %+v, want DeviceNotFound failure", res)
	}

	_, err = storcli.Classify(resp, storcli.ModeError)
	var ce *storcli.Error
	if !errors.As(err, &ce) {
		t.Fatalf("ModeError err = %v, want *Error", err)
	}
	if ce.Kind != storcli.KindDeviceNotFound || ce.Code != 12 || ce.Detail != resp.Detail {
		t.Fatalf("error = %+v", ce)
	}
	if !errors.Is(err, storcli.ErrDeviceNotFound) || errors.Is(err, storcli.ErrTimeout) {
		t.Fatalf("errors.Is does not compare kinds: %v", err)
	}
}

func TestClassifyAllowCodes(t *testing.T) {
	resp := failure(storcli.CodeIncompleteForeignConfiguration, true, "Incomplete foreign configuration")
	res, err := storcli.Classify(resp, storcli.ModeError, storcli.CodeIncompleteForeignConfiguration)
	if err != nil || !res.OK {
		t.Fatalf("allowed code: res = %+v err = %v", res, err)
	}
	if _, err := storcli.Classify(resp, storcli.ModeError); err == nil {
		t.Fatalf("code 59 succeeded without being allowed")
	}
}

func TestEveryDocumentedMessageIsClassified(t *testing.T) {
	for code := 0; code <= 255; code++ {
		c, ok := storcli.LookupCode(code)
		if !ok {
			continue
		}
		if !c.Kind.Valid() || c.Kind == storcli.KindUnclassified {
			t.Fatalf("code %d has kind %q", code, c.Kind)
		}
		res := storcli.ClassifyResponse(failure(-1, false, c.Text()))
		if res.Kind == storcli.KindUnclassified {
			t.Fatalf("message of code %d (%q) is Unclassified", code, c.Text())
		}
	}
}

func TestClassifyIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		resp := storcli.Response{
			Status:     rapid.SampledFrom([]string{"Success", "Failure", "Failed", ""}).Draw(t, "status"),
			ReturnCode: rapid.IntRange(-1, 300).Draw(t, "code"),
			VendorCode: rapid.Bool().Draw(t, "vendor"),
			Detail:     rapid.String().Draw(t, "detail"),
			Stderr:     rapid.String().Draw(t, "stderr"),
		}
		mode := rapid.SampledFrom([]storcli.Mode{storcli.ModeError, storcli.ModeResult}).Draw(t, "mode")

		res, err := storcli.Classify(resp, mode)
		if !res.Kind.Valid() {
			t.Fatalf("invalid kind %q", res.Kind)
		}
		if res.OK != (res.Kind == storcli.KindSuccess) {
			t.Fatalf("OK = %v with kind %s", res.OK, res.Kind)
		}
		if mode == storcli.ModeResult && err != nil {
			t.Fatalf("ModeResult returned %v", err)
		}
		if mode == storcli.ModeError && (err == nil) == !res.OK {
			t.Fatalf("ModeError: OK = %v, err = %v", res.OK, err)
		}
	})
}

func TestKindOf(t *testing.T) {
	if storcli.KindOf(nil) != storcli.KindSuccess {
		t.Fatalf("KindOf(nil) != Success")
	}
	if storcli.KindOf(errors.New("x")) != storcli.KindUnclassified {
		t.Fatalf("KindOf(plain error) != Unclassified")
	}
	pe := &storcli.ProcessError{Kind: storcli.KindTimeout, Binary: "storcli64"}
	if storcli.KindOf(pe) != storcli.KindTimeout || !errors.Is(pe, storcli.ErrTimeout) {
		t.Fatalf("ProcessError kind not visible")
	}
	if k, ok := storcli.ParseKind("devicenotfound"); !ok || k != storcli.KindDeviceNotFound {
		t.Fatalf("ParseKind = %s, %v", k, ok)
	}
}
