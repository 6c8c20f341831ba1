package main

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/patric-chuzhbe/scratchpad/internal/client/api"
	"github.com/patric-chuzhbe/scratchpad/internal/client/clientconfig"
	"github.com/patric-chuzhbe/scratchpad/internal/client/localstore"
	"github.com/patric-chuzhbe/scratchpad/internal/client/reconciler"
	"github.com/patric-chuzhbe/scratchpad/internal/client/tabset"
	"github.com/patric-chuzhbe/scratchpad/internal/logger"
)

var errSyncFailed = errors.New("sync did not complete")

// cliEnv is built before a subcommand runs and released by run after it.
type cliEnv struct {
	cfg      *clientconfig.Config
	store    *localstore.Store
	client   *api.Client
	session  *reconciler.Session
	failures atomic.Int32
}

func newRootCmd() (*cobra.Command, *cliEnv) {
	env := &cliEnv{}

	root := &cobra.Command{
		Use:           "padctl",
		Short:         "Multi-tab scratchpad with account sync",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.open(cmd)
		},
	}
	clientconfig.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRegisterCmd(env),
		newLoginCmd(env),
		newLogoutCmd(env),
		newSyncCmd(env),
		newTabsCmd(env),
		newThemeCmd(env),
		newWatchCmd(env),
		newHealthCmd(env),
	)

	return root, env
}

func (e *cliEnv) open(cmd *cobra.Command) error {
	cfg, err := clientconfig.Load(cmd.Flags())
	if err != nil {
		return err
	}
	e.cfg = cfg

	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}

	store, err := localstore.Open(cfg.StateFile)
	if err != nil {
		return err
	}
	e.store = store

	e.client = api.New(cfg.ServerURL, cfg.RequestTimeout)
	e.session = reconciler.New(
		e.client,
		tabset.New(store),
		reconciler.WithDebounce(cfg.Debounce),
		reconciler.WithSyncInterval(cfg.SyncInterval),
		reconciler.WithStatusHandler(e.statusPrinter(cmd.ErrOrStderr())),
	)
	e.session.Resume()

	return nil
}

// close pushes pending edits, waits for outstanding requests and releases
// the state file.
func (e *cliEnv) close() {
	if e.session != nil {
		e.session.Close()
		e.session = nil
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			fmt.Println("State file close error:", err)
		}
		e.store = nil
	}
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

// settle waits for async work and fails when any of it reported an error.
func (e *cliEnv) settle() error {
	e.session.Wait()
	if e.failures.Load() > 0 {
		return errSyncFailed
	}

	return nil
}

func (e *cliEnv) statusPrinter(w io.Writer) func(reconciler.Status) {
	return func(status reconciler.Status) {
		prefix := "ok"
		if status.IsError {
			prefix = "sync error"
			e.failures.Add(1)
		}
		fmt.Fprintf(w, "%s: %s\n", prefix, status.Message)
	}
}
