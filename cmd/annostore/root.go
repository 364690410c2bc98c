// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"annostore.io/annostore/internal/config"
	"annostore.io/annostore/internal/logging"
	"annostore.io/annostore/pkg/hierarchy"
	"annostore.io/annostore/pkg/imageentry"
	"annostore.io/annostore/pkg/interchange"
	"annostore.io/annostore/private/kvstore"
)

// app is the state shared by the subcommands of a single invocation.
type app struct {
	out        io.Writer
	configPath string

	cfg config.Config
	log *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, log: zap.NewNop()}

	root := &cobra.Command{
		Use:               "annostore",
		Short:             "Stores and exchanges image annotations",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.FileName, "settings file")
	config.RegisterFlags(flags, config.Default())

	root.AddCommand(
		a.listCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.deleteCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads the settings file, overlays environment and flags, and
// builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	vip, err := config.Bind(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = config.Overlay(cfg, vip)
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(a.cfg.Log)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(kvstore.Store) error) (err error) {
	store, err := imageentry.OpenStore(ctx, a.log, a.cfg.Store.URL, a.cfg.Store.Bucket)
	if err != nil {
		return err
	}
	defer func() {
		err = errs.Combine(err, store.Close())
		_ = a.log.Sync()
	}()
	return fn(store)
}

// entryOptions opens save points accepting every record generation,
// regardless of the import settings.
func (a *app) entryOptions(readonly bool) imageentry.Options {
	return imageentry.Options{
		Readonly: readonly,
		Compress: a.cfg.Export.Compress,
		Legacy:   a.cfg.Export.Legacy,
	}
}

func (a *app) importOptions() hierarchy.ImportOptions {
	caps := interchange.AllCapabilities
	caps.RequiresLegacyIDInference = a.cfg.Import.LegacyIDs
	return hierarchy.ImportOptions{
		Strict:       a.cfg.Import.Strict,
		FixInvalid:   a.cfg.Import.FixInvalid,
		Capabilities: &caps,
	}
}
