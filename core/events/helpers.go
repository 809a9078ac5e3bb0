package events

import (
	"strconv"

	"github.com/holiman/uint256"
)

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func itoa(v int) string { return strconv.Itoa(v) }

func boolString(v bool) string { return strconv.FormatBool(v) }
