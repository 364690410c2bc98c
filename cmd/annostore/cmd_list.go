// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	"annostore.io/annostore/pkg/imageentry"
	"annostore.io/annostore/private/kvstore"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List image entries with their object counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(store kvstore.Store) error {
				names, err := imageentry.List(ctx, store)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(a.out, 4, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ENTRY\tANNOTATIONS\tDETECTIONS")
				for _, name := range names {
					entry, err := imageentry.Open(ctx, a.log, store, name, a.entryOptions(true))
					if err != nil {
						return err
					}
					h := entry.Hierarchy()
					fmt.Fprintf(tw, "%s\t%d\t%d\n", name, h.Annotations().Len(), h.Detections().Len())
					if err := entry.Close(); err != nil {
						return err
					}
				}
				return errs.Wrap(tw.Flush())
			})
		},
	}
}
