package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-record-loader/pkg/di"
	"github.com/goliatone/go-record-loader/record"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "recordcache",
		Short:         "Inspect and maintain the record cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./recordcache.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newKeyCommand(opts))
	cmd.AddCommand(newPutCommand(opts))
	cmd.AddCommand(newLookupCommand(opts))
	cmd.AddCommand(newCleanupCommand(opts))
	cmd.AddCommand(newPruneCommand(opts))

	return cmd
}

// openContainer loads the configuration and builds a cache only container.
func openContainer(opts *rootOptions, cmd *cobra.Command) (*di.Container, error) {
	config, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return di.NewContainer(config, nil, nil, di.WithLogger(logger))
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the record cache table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(opts, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if c.SQLStore() == nil {
				return fmt.Errorf("no sql tier configured: set sql.dsn")
			}
			if err := c.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "record cache schema is up to date")
			return nil
		},
	}
}

func newKeyCommand(opts *rootOptions) *cobra.Command {
	var userID, policy string

	cmd := &cobra.Command{
		Use:   "key <source|id>",
		Short: "Print the cache key of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(opts, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			rc := c.RecordCache()
			if policy != "" {
				if err := rc.SetPolicy(policy); err != nil {
					return err
				}
			}
			ref := record.ParseReference(args[0])
			active, name := rc.Policy()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s (%s)\n", rc.Key(ref.ID, ref.Source, userID), name, active)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&policy, "policy", "p", "", "policy name or flag expression")
	return cmd
}

func newPutCommand(opts *rootOptions) *cobra.Command {
	var userID, sessionID, resourceID, cacheContext string

	cmd := &cobra.Command{
		Use:   "put <source|id> <json|@file|->",
		Short: "Store raw record data in the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if !json.Valid(data) {
				return fmt.Errorf("record data is not valid JSON")
			}

			c, err := openContainer(opts, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			rc := c.RecordCache()
			if cacheContext != "" {
				rc.SetContext(cacheContext)
			}
			ref := record.ParseReference(args[0])
			return rc.CreateOrUpdate(cmd.Context(), ref.ID, userID, ref.Source, data, sessionID, resourceID)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owning user id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&resourceID, "resource", "", "resource id")
	cmd.Flags().StringVar(&cacheContext, "context", "", "cache context, e.g. Favorite")
	return cmd
}

func newLookupCommand(opts *rootOptions) *cobra.Command {
	var userID, cacheContext string

	cmd := &cobra.Command{
		Use:   "lookup <source|id>...",
		Short: "Read records from the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(opts, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			rc := c.RecordCache()
			if cacheContext != "" {
				rc.SetContext(cacheContext)
			}

			refs := make([]record.Reference, len(args))
			for i, arg := range args {
				refs[i] = record.ParseReference(arg)
			}
			recs, err := rc.Lookup(cmd.Context(), userID, refs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVar(&cacheContext, "context", "", "cache context, e.g. Favorite")
	return cmd
}

func newCleanupCommand(opts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove every cache entry owned by a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(opts, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.RecordCache().Cleanup(cmd.Context(), userID)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newPruneCommand(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove persisted entries not refreshed recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			c, err := openContainer(opts, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if c.SQLStore() == nil {
				return fmt.Errorf("no sql tier configured: set sql.dsn")
			}
			removed, err := c.SQLStore().DeleteOlderThan(cmd.Context(), time.Now().UTC().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age threshold")
	return cmd
}

// readData returns arg itself, the contents of @file, or stdin for "-".
func readData(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		return []byte(arg), nil
	}
}
