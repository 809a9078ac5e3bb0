package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"crosshub/config"
)

// command runs one hubctl subcommand against the loaded profile.
type command func(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int

var commands = map[string]command{
	"state":            runHubState,
	"chains":           runChains,
	"chain":            runChain,
	"pools":            runPools,
	"pool":             runPool,
	"tokens":           runTokens,
	"escrows":          runEscrows,
	"simulate-swap":    runSimulateSwap,
	"simulate-release": runSimulateRelease,
	"lock":             runLock,
	"factory-state":    runFactoryState,
	"pending":          runPending,
	"outbox":           runOutbox,
	"relays":           runRelays,
	"relay":            runRelay,
	"create-pool":      runCreatePool,
	"add-liquidity":    runAddLiquidity,
	"remove-liquidity": runRemoveLiquidity,
	"swap":             runSwap,
	"export-escrows":   runExportEscrows,
	"history":          runHistory,
}

var nowFn = time.Now

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("hubctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	profilePath := global.String("config", config.DefaultPath(), "path to the hubctl profile")
	if err := global.Parse(args); err != nil {
		return 1
	}
	args = global.Args()
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	if args[0] == "profile" {
		return runProfile(*profilePath, args[1:], stdout, stderr)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cfg, err := config.Load(*profilePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading profile: %v\n", err)
		return 1
	}
	return cmd(ctx, newClient(cfg, historyPath(*profilePath, cfg)), args[1:], stdout, stderr)
}

// historyPath resolves the receipt history file. Relative paths are taken
// from the profile's directory.
func historyPath(profilePath string, cfg *config.Config) string {
	path := cfg.HistoryFile
	if path == "" {
		path = "hubctl-history.db"
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(profilePath), path)
}

func runProfile(path string, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: hubctl profile <show|set> [flags]")
		return 1
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading profile: %v\n", err)
		return 1
	}
	switch args[0] {
	case "show":
		shown := *cfg
		if shown.HMACSecret != "" {
			shown.HMACSecret = "[REDACTED]"
		}
		return printJSON(stdout, stderr, shown)
	case "set":
		fs := newFlagSet("profile set", stderr)
		fs.StringVar(&cfg.HubURL, "hub", cfg.HubURL, "hubd base URL")
		fs.StringVar(&cfg.FactoryURL, "factory", cfg.FactoryURL, "factoryd base URL")
		fs.StringVar(&cfg.Env, "env", cfg.Env, "environment name")
		fs.StringVar(&cfg.Subject, "subject", cfg.Subject, "address used as token subject")
		fs.StringVar(&cfg.ChainUID, "chain", cfg.ChainUID, "chain uid of the subject")
		fs.StringVar(&cfg.HMACSecretEnv, "secret-env", cfg.HMACSecretEnv, "environment variable holding the HMAC secret")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if err := config.Save(path, cfg); err != nil {
			fmt.Fprintf(stderr, "Error saving profile: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Profile written to %s\n", path)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown profile subcommand: %s\n", args[0])
		return 1
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error encoding output: %v\n", err)
		return 1
	}
	return 0
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func usage() string {
	lines := []string{
		"Usage: hubctl [-config path] <command> [flags]",
		"",
		"Hub queries:",
		"  state | chains | chain -uid | pools | pool -token1 -token2 | tokens | escrows -token",
		"  simulate-swap -asset-in -amount-in -asset-out -route usdc/atom,atom/osmo",
		"  simulate-release -token -amount -claimants addr@chain[=limit],...",
		"  export-escrows -out escrows.parquet",
		"",
		"Factory requests:",
		"  create-pool -token1 usdc=native:uusdc -token2 atom=native:uatom",
		"  add-liquidity | remove-liquidity | swap",
		"  pending -kind swaps -requester | outbox | relays | factory-state | history",
		"",
		"Admin:",
		"  lock -locked=true | relay",
		"  profile show | profile set -hub -factory -subject -chain",
	}
	return strings.Join(lines, "\n")
}
