package types

import (
	"fmt"
	"strconv"
	"strings"
)

// SwapID identifies a swap as "<sender>-<index>".
type SwapID struct {
	Sender string
	Index  uint64
}

func (s SwapID) String() string { return fmt.Sprintf("%s-%d", s.Sender, s.Index) }

// ParseSwapID splits id on its last '-' into sender and numeric index.
func ParseSwapID(id string) (SwapID, error) {
	idx := strings.LastIndexByte(id, '-')
	if idx <= 0 || idx == len(id)-1 {
		return SwapID{}, fmt.Errorf("swap id %q: expected <sender>-<index>", id)
	}
	index, err := strconv.ParseUint(id[idx+1:], 10, 64)
	if err != nil {
		return SwapID{}, fmt.Errorf("swap id %q: %w", id, err)
	}
	return SwapID{Sender: id[:idx], Index: index}, nil
}
