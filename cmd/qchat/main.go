// Command qchat is a command-line client for post-quantum encrypted chat.
//
// Usage:
//
//	qchat keygen -u alice -o alice_private_key.txt
//	qchat register -u alice
//	qchat send bob "hello"
//	qchat history bob
//	qchat watch
//
// Configuration is read from ~/.config/qchat/config.yaml, a .env file and
// QCHAT_* environment variables; see package internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	quantumchat "github.com/quantumchat/client-go"
	"github.com/quantumchat/client-go/internal/config"
	"github.com/quantumchat/client-go/keystore"
	"github.com/quantumchat/client-go/redisstore"
)

// Streams holds the I/O the CLI reads and writes.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultStreams returns the process's standard streams.
func DefaultStreams() Streams {
	return Streams{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, DefaultStreams()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries global flags and state shared by subcommands.
type app struct {
	io  Streams
	cfg *config.Config
	log zerolog.Logger

	configPath string
	envFile    string
	username   string
	passphrase string
	logLevel   string

	relay   *redisstore.Store
	closers []io.Closer
}

func run(ctx context.Context, args []string, s Streams) error {
	a := &app{io: s}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args[1:])
	root.SetIn(s.Stdin)
	root.SetOut(s.Stdout)
	root.SetErr(s.Stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "qchat",
		Short:         "Post-quantum end-to-end encrypted chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load if present")
	flags.StringVarP(&a.username, "user", "u", "", "your username (overrides config)")
	flags.StringVarP(&a.passphrase, "passphrase", "p", "", "key store passphrase (default $QCHAT_PASSPHRASE)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		a.keygenCmd(),
		a.pubkeyCmd(),
		a.sealCmd(),
		a.openCmd(),
		a.registerCmd(),
		a.importKeyCmd(),
		a.exportKeyCmd(),
		a.sendCmd(),
		a.usersCmd(),
		a.historyCmd(),
		a.watchCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	if a.username != "" {
		cfg.Username = a.username
	}
	if a.passphrase != "" {
		cfg.Passphrase = a.passphrase
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.log = zerolog.New(zerolog.ConsoleWriter{Out: a.io.Stderr, TimeFormat: "15:04:05"}).
		Level(cfg.Level()).
		With().Timestamp().Logger()
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

func (a *app) requireUser() (string, error) {
	if a.cfg.Username == "" {
		return "", errors.New("username required: use --user or set username in config")
	}
	return a.cfg.Username, nil
}

func (a *app) keyStore() (*keystore.File, error) {
	if a.cfg.Passphrase == "" {
		return nil, errors.New("passphrase required: use --passphrase or set QCHAT_PASSPHRASE")
	}
	return keystore.NewFile(a.cfg.KeyFile, a.cfg.Passphrase), nil
}

// newClient builds a client on the configured backend and key store.
// Unless fresh is set it resumes the configured user from the key store.
func (a *app) newClient(ctx context.Context, fresh bool) (*quantumchat.Client, error) {
	user, err := a.requireUser()
	if err != nil {
		return nil, err
	}
	keys, err := a.keyStore()
	if err != nil {
		return nil, err
	}

	opts := []quantumchat.Option{
		quantumchat.WithKEM(a.cfg.KEM),
		quantumchat.WithCipher(a.cfg.Cipher),
		quantumchat.WithKeyStore(keys),
		quantumchat.WithLogger(a.log),
		quantumchat.WithPollingInitialInterval(a.cfg.PollInterval),
		quantumchat.WithPollingMaxBackoff(a.cfg.PollMaxBackoff),
	}
	if a.cfg.Concurrency > 0 {
		opts = append(opts, quantumchat.WithConcurrency(a.cfg.Concurrency))
	}

	switch a.cfg.Backend {
	case config.BackendRedis:
		store, err := redisstore.Dial(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB,
			redisstore.WithPrefix(a.cfg.Redis.Prefix),
			redisstore.WithLogger(a.log),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		a.relay = store
		opts = append(opts,
			quantumchat.WithDirectory(store),
			quantumchat.WithStore(store),
			quantumchat.WithRelay(store),
		)
	default:
		opts = append(opts,
			quantumchat.WithServerURL(a.cfg.Server.URL),
			quantumchat.WithServerToken(a.cfg.Server.Token),
			quantumchat.WithRetries(a.cfg.Server.Retries),
		)
	}

	client, err := quantumchat.New(opts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client)

	if !fresh {
		if err := client.Resume(user); err != nil {
			if errors.Is(err, quantumchat.ErrNoPrivateKey) {
				return nil, fmt.Errorf("no key for %s in %s: run register or import-key first", user, a.cfg.KeyFile)
			}
			return nil, err
		}
	}
	return client, nil
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.Redacted().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
