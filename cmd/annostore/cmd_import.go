// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	"annostore.io/annostore/pkg/imageentry"
	"annostore.io/annostore/private/kvstore"
)

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import ENTRY FILE",
		Short: "Add the objects of a GeoJSON file to an entry and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[1])
			if err != nil {
				return errs.Wrap(err)
			}

			return a.withStore(ctx, func(store kvstore.Store) (err error) {
				entry, err := imageentry.Open(ctx, a.log, store, args[0], a.entryOptions(false))
				if err != nil {
					return err
				}
				defer func() { err = errs.Combine(err, entry.Close()) }()

				result, err := entry.Hierarchy().LoadGeoJSON(data, a.importOptions())
				if err != nil {
					return err
				}
				if err := entry.Save(ctx); err != nil {
					return err
				}

				fmt.Fprintf(a.out, "added %d objects to %s\n", result.Added, args[0])
				names := make([]string, 0, len(result.Skipped))
				for name := range result.Skipped {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(a.out, "skipped %d %s\n", result.Skipped[name], name)
				}
				return nil
			})
		},
	}
}
