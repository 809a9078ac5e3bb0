package config

// Config is the operator profile used by hubctl. It is stored as TOML next to
// the operator's other tooling and created with defaults on first use.
type Config struct {
	HubURL     string `toml:"HubURL"`
	FactoryURL string `toml:"FactoryURL"`
	// Env selects the scheme policy; plaintext endpoints are only accepted
	// for dev, test and local.
	Env string `toml:"Env"`

	Subject  string `toml:"Subject"`
	ChainUID string `toml:"ChainUID"`

	Issuer          string `toml:"Issuer"`
	Audience        string `toml:"Audience"`
	HMACSecret      string `toml:"HMACSecret,omitempty"`
	HMACSecretEnv   string `toml:"HMACSecretEnv"`
	TokenTTLSeconds uint32 `toml:"TokenTTLSeconds"`
	TimeoutSeconds  uint32 `toml:"TimeoutSeconds"`

	// HistoryFile is the Bolt file receipts are kept in, relative to the
	// profile directory unless absolute.
	HistoryFile string `toml:"HistoryFile,omitempty"`
}
