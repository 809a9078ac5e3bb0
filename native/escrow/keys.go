package escrow

import "crosshub/core/types"

var balancePrefix = []byte("escrow/balance/")

func balanceKey(token types.Token, chain types.ChainUID) []byte {
	key := make([]byte, 0, len(balancePrefix)+len(token)+len(chain)+1)
	key = append(key, balancePrefix...)
	key = append(key, token...)
	key = append(key, types.KeySeparator)
	return append(key, chain...)
}

func tokenPrefix(token types.Token) []byte {
	key := make([]byte, 0, len(balancePrefix)+len(token)+1)
	key = append(key, balancePrefix...)
	key = append(key, token...)
	return append(key, types.KeySeparator)
}

func splitBalanceKey(suffix []byte) (types.Token, types.ChainUID, bool) {
	for i, b := range suffix {
		if b == types.KeySeparator {
			return types.Token(suffix[:i]), types.ChainUID(suffix[i+1:]), true
		}
	}
	return "", "", false
}
