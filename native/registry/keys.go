package registry

import "crosshub/core/types"

var (
	pairPoolPrefix = []byte("router/pair/")
	poolPairPrefix = []byte("router/pool/")
	chainPrefix    = []byte("router/chain/")
	chainCountKey  = []byte("router/chain-count")
	poolCountKey   = []byte("router/pool-count")
)

func pairPoolKey(pair types.Pair) []byte {
	return append(append([]byte(nil), pairPoolPrefix...), pair.Key()...)
}

func poolPairKey(pool types.PoolID) []byte {
	return append(append([]byte(nil), poolPairPrefix...), pool...)
}

func chainKey(uid types.ChainUID) []byte {
	return append(append([]byte(nil), chainPrefix...), uid...)
}
