package raid

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandDriveIDs expands a storcli drives expression into "enclosure:slot"
// ids. Groups are separated by ';' or by a comma followed by a new
// "enclosure:" prefix; slots are single numbers or inclusive ranges:
//
//	252:0-2,5;253:1  ->  252:0 252:1 252:2 252:5 253:1
func ExpandDriveIDs(expr string) ([]string, error) {
	var (
		out  []string
		encl string
	)
	for _, group := range strings.Split(expr, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		encl = ""
		for _, tok := range strings.Split(group, ",") {
			tok = strings.TrimSpace(tok)
			if i := strings.IndexByte(tok, ':'); i >= 0 {
				encl = strings.TrimSpace(tok[:i])
				tok = strings.TrimSpace(tok[i+1:])
				if encl == "" {
					return nil, fmt.Errorf("drives %q: empty enclosure", expr)
				}
			}
			if encl == "" {
				return nil, fmt.Errorf("drives %q: slot %q has no enclosure", expr, tok)
			}
			slots, err := expandSlots(tok)
			if err != nil {
				return nil, fmt.Errorf("drives %q: %w", expr, err)
			}
			for _, s := range slots {
				out = append(out, encl+":"+strconv.Itoa(s))
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("drives %q: no drives", expr)
	}
	return out, nil
}

func expandSlots(tok string) ([]int, error) {
	lo, hi, isRange := strings.Cut(tok, "-")
	first, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("bad slot %q", tok)
	}
	if !isRange {
		return []int{first}, nil
	}
	last, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || last < first {
		return nil, fmt.Errorf("bad slot range %q", tok)
	}
	out := make([]int, 0, last-first+1)
	for s := first; s <= last; s++ {
		out = append(out, s)
	}
	return out, nil
}

// CountDrives returns the number of drives in a drives expression.
func CountDrives(expr string) (int, error) {
	ids, err := ExpandDriveIDs(expr)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// pdPerArray infers the PDperArray argument for spanned levels. RAID 00
// takes one drive per array; 10, 50 and 60 split the drives in two spans,
// or three when the count is odd and divisible by three (9 drives in
// RAID 60).
func pdPerArray(raid string, drives int) (int, bool) {
	if raid == "00" {
		return 1, true
	}
	level, err := strconv.Atoi(raid)
	if err != nil || level < 10 {
		return 0, false
	}
	if drives%2 != 0 && drives%3 == 0 {
		return drives / 3, true
	}
	return drives / 2, true
}
