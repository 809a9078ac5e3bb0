package types

// NextSwapPair is one hop of a requested swap route.
type NextSwapPair struct {
	TokenIn  Token `json:"token_in"`
	TokenOut Token `json:"token_out"`
	TestFail bool  `json:"test_fail,omitempty"`
}

// NextSwapVlp is a hop resolved to the pool that prices it.
type NextSwapVlp struct {
	Pool     PoolID `json:"vlp_address"`
	TestFail bool   `json:"test_fail,omitempty"`
}
