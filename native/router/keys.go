package router

import "crosshub/core/types"

var (
	lockedKey      = []byte("router/locked")
	executedPrefix = []byte("router/executed/")
)

// executedKey identifies a packet by its origin so redeliveries are
// recognised: chain uid, sender, kind and tx id joined by the key separator.
func executedKey(chain types.ChainUID, sender, kind, txID string) []byte {
	out := append([]byte(nil), executedPrefix...)
	for i, part := range []string{string(chain), sender, kind, txID} {
		if i > 0 {
			out = append(out, types.KeySeparator)
		}
		out = append(out, part...)
	}
	return out
}
