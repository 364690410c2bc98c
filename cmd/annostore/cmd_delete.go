// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"annostore.io/annostore/pkg/imageentry"
	"annostore.io/annostore/private/kvstore"
)

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ENTRY",
		Short: "Remove the save point of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(store kvstore.Store) error {
				if err := imageentry.Delete(ctx, store, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
