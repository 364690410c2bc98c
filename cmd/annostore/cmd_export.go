// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	"annostore.io/annostore/pkg/hierarchy"
	"annostore.io/annostore/pkg/imageentry"
	"annostore.io/annostore/private/kvstore"
)

func (a *app) exportCmd() *cobra.Command {
	var detections bool

	cmd := &cobra.Command{
		Use:   "export ENTRY [FILE]",
		Short: "Write the annotations of an entry as GeoJSON",
		Long:  "Write the annotations of an entry as GeoJSON to FILE, or to standard output when FILE is omitted.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(store kvstore.Store) (err error) {
				if _, err := store.Get(ctx, imageentry.DataKey(args[0])); err != nil {
					return errs.New("entry %q: %v", args[0], err)
				}

				entry, err := imageentry.Open(ctx, a.log, store, args[0], a.entryOptions(true))
				if err != nil {
					return err
				}
				defer func() { err = errs.Combine(err, entry.Close()) }()

				data, err := entry.Hierarchy().ToGeoJSON(hierarchy.ExportOptions{
					Legacy:     a.cfg.Export.Legacy,
					Detections: detections,
				})
				if err != nil {
					return err
				}

				if len(args) == 1 {
					_, err = a.out.Write(append(data, '\n'))
					return errs.Wrap(err)
				}
				return errs.Wrap(os.WriteFile(args[1], data, 0o644))
			})
		},
	}
	cmd.Flags().BoolVar(&detections, "detections", false, "also export detections and tiles")
	return cmd
}
