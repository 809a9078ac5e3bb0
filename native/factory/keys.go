package factory

import (
	"encoding/binary"

	"crosshub/core/types"
)

var (
	pendingPrefix     = []byte("factory/pending/")
	txPrefix          = []byte("factory/tx/")
	hubChannelKey     = []byte("factory/hub-channel")
	pairPrefix        = []byte("factory/pair/")
	escrowPrefix      = []byte("factory/escrow/")
	denomPrefix       = []byte("factory/denom/")
	outboxPrefix      = []byte("factory/outbox/")
	outboxSequenceKey = []byte("factory/outbox-seq")
	partnerFeesKey    = []byte("factory/partner-fees")
	quotaPrefix       = []byte("factory/quota/")
	pausedPrefix      = []byte("factory/paused/")
)

func join(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var sep = []byte{types.KeySeparator}

func pendingKindPrefix(kind string) []byte {
	return join(pendingPrefix, []byte(kind), []byte("/"))
}

func pendingRequesterPrefix(kind, requester string) []byte {
	return join(pendingKindPrefix(kind), []byte(requester), sep)
}

func pendingKey(kind, requester, txID string) []byte {
	return join(pendingRequesterPrefix(kind, requester), []byte(txID))
}

// txKey marks a (requester, tx id) as taken by a pending entry of any kind.
func txKey(requester, txID string) []byte {
	return join(txPrefix, []byte(requester), sep, []byte(txID))
}

func localPairKey(pair types.Pair) []byte {
	return join(pairPrefix, pair.Key())
}

func escrowKey(token types.Token) []byte {
	return join(escrowPrefix, []byte(token))
}

func denomTokenPrefix(token types.Token) []byte {
	return join(denomPrefix, []byte(token), sep)
}

func denomKey(token types.Token, denom types.TokenType) []byte {
	return join(denomTokenPrefix(token), []byte(denom.Key()))
}

func outboxKey(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return join(outboxPrefix, buf[:])
}

func quotaKey(requester string) []byte {
	return join(quotaPrefix, []byte(requester))
}

func pausedKey(module string) []byte {
	return join(pausedPrefix, []byte(module))
}
