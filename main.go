package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fzft/go-openset/cmd"
	"github.com/fzft/go-openset/config"
	"github.com/fzft/go-openset/db"
	"github.com/fzft/go-openset/log"
	"github.com/fzft/go-openset/node"
	"go.uber.org/zap"
)

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" type:"path"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Server ServerCmd `cmd:"" help:"Run the openset server"`
	Cli    CliCmd    `cmd:"" help:"Send commands to a server, interactively or once"`
}

// ServerCmd implements the 'server' command. Flags override the
// configuration file.
type ServerCmd struct {
	Addr        string        `help:"Listen address (server.addr)"`
	MetricsAddr string        `help:"Prometheus endpoint address, empty disables it (server.metrics_addr)"`
	MaxClients  int           `help:"Maximum number of connected clients (server.max_clients)"`
	IdleTimeout time.Duration `help:"Close clients idle for this long, 0 disables (server.idle_timeout)"`
	Hasher      string        `help:"Member hash function: java, murmur3, xxhash or fnv (sets.hasher)"`
	LogLevel    string        `help:"Log level: debug, info, warn or error (log.level)"`
	Development bool          `help:"Human readable console logs (log.development)"`
}

func (s *ServerCmd) Run(root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	s.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := log.InitLogger(log.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		TimeZone:    cfg.Log.TimeZone,
	}); err != nil {
		return err
	}
	defer log.Sync()

	opts, err := cfg.DbOptions()
	if err != nil {
		return err
	}
	rdb, err := db.New(0, opts)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	log.Logger.Info("starting openset",
		zap.String("version", versionString()),
		zap.String("build_id", buildIDRaw()),
		zap.String("hasher", cfg.Sets.Hasher),
		zap.Int("default_capacity", cfg.Sets.DefaultCapacity))

	srv := node.NewServer(node.Options{
		Addr:        cfg.Server.Addr,
		MetricsAddr: cfg.Server.MetricsAddr,
		MaxClients:  cfg.Server.MaxClients,
		IdleTimeout: cfg.Server.IdleTimeout,
		Version:     versionString(),
	}, rdb)
	return srv.Run(ctx)
}

func (s *ServerCmd) apply(cfg *config.Config) {
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	if s.MetricsAddr != "" {
		cfg.Server.MetricsAddr = s.MetricsAddr
	}
	if s.MaxClients != 0 {
		cfg.Server.MaxClients = s.MaxClients
	}
	if s.IdleTimeout != 0 {
		cfg.Server.IdleTimeout = s.IdleTimeout
	}
	if s.Hasher != "" {
		cfg.Sets.Hasher = s.Hasher
	}
	if s.LogLevel != "" {
		cfg.Log.Level = s.LogLevel
	}
	if s.Development {
		cfg.Log.Development = true
	}
}

// CliCmd implements the 'cli' command.
type CliCmd struct {
	Host     string        `help:"Server hostname" default:"127.0.0.1"`
	Port     int           `short:"p" help:"Server port" default:"6380"`
	Raw      bool          `help:"Use raw formatting for replies (default when STDOUT is not a tty)" xor:"output"`
	NoRaw    bool          `help:"Force formatted output even when STDOUT is not a tty" xor:"output"`
	Repeat   int           `short:"r" help:"Execute specified command N times" default:"1"`
	Interval time.Duration `short:"i" help:"Wait interval between repeated commands"`
	Timeout  time.Duration `help:"Connect and request timeout" default:"5s"`
	Verbose  bool          `short:"v" help:"Log debug output to stderr"`
	Args     []string      `arg:"" optional:"" passthrough:"" help:"Command and arguments to run once"`
}

func (c *CliCmd) Run() error {
	if c.Verbose {
		if err := log.InitLogger(log.Options{Level: "debug", Development: true}); err != nil {
			return err
		}
		defer log.Sync()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli := cmd.NewRedisCli(cmd.Options{
		Host:     c.Host,
		Port:     c.Port,
		Raw:      c.Raw,
		NoRaw:    c.NoRaw,
		Repeat:   c.Repeat,
		Interval: c.Interval,
		Timeout:  c.Timeout,
		Version:  versionString(),
		Args:     c.Args,
	})
	return cli.Run(ctx)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("openset"),
		kong.Description("A Redis protocol server for bounded open addressing sets."),
		kong.Vars{"version": versionString()},
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
