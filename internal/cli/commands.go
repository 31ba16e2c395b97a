package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/eleven-am/tabq"
	"github.com/eleven-am/tabq/internal/xjson"
	"github.com/spf13/cobra"
)

type item = xjson.RawMessage

func withStore(cmd *cobra.Command, opts *options, fn func(*tabq.Store) error) error {
	cfg, err := opts.config(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, err := tabq.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func withLeaseQueue(cmd *cobra.Command, opts *options, fn func(*tabq.LeaseQueue[item]) error) error {
	return withStore(cmd, opts, func(store *tabq.Store) error {
		q, err := tabq.NewLeaseQueue[item](store)
		if err != nil {
			return err
		}
		defer q.Close()

		return fn(q)
	})
}

func newCountCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored records, leased ones included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLeaseQueue(cmd, opts, func(q *tabq.LeaseQueue[item]) error {
				n, err := q.Count()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newEnqueueCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <item>...",
		Short: "Append items to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLeaseQueue(cmd, opts, func(q *tabq.LeaseQueue[item]) error {
				for _, arg := range args {
					payload, err := toItem(arg)
					if err != nil {
						return err
					}
					if err := q.Enqueue(payload); err != nil {
						return fmt.Errorf("enqueue %q: %w", arg, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d\n", len(args))
				return nil
			})
		},
	}
}

func newPeekCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Print the next available item without removing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLeaseQueue(cmd, opts, func(q *tabq.LeaseQueue[item]) error {
				payload, err := q.Peek()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return nil
			})
		},
	}
}

func newDequeueCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dequeue",
		Short: "Remove and print the next available item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLeaseQueue(cmd, opts, func(q *tabq.LeaseQueue[item]) error {
				payload, err := q.Dequeue()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return nil
			})
		},
	}
}

func newLeaseCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease",
		Short: "Lease the next available item and print its bookmark",
		Long: `Lease the next available item. The item stays stored until
"tabqctl complete <bookmark>" removes it or the lease expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLeaseQueue(cmd, opts, func(q *tabq.LeaseQueue[item]) error {
				lease, err := q.TakeLease()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "bookmark: %s\n", lease.Bookmark)
				fmt.Fprintf(out, "expires:  %s\n", lease.ExpiresAt.Format(time.RFC3339))
				fmt.Fprintf(out, "item:     %s\n", string(lease.Item))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&opts.leaseDuration, "duration", 0, "Lease duration (default from config)")
	return cmd
}

func newCompleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <bookmark>",
		Short: "Remove the record a lease bookmark points at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid bookmark %q: %w", args[0], err)
			}
			return withLeaseQueue(cmd, opts, func(q *tabq.LeaseQueue[item]) error {
				if err := q.RemoveAtBookmark(tabq.Bookmark(raw)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "completed")
				return nil
			})
		},
	}
}

func newReclaimCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Make every item with an expired lease available again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLeaseQueue(cmd, opts, func(q *tabq.LeaseQueue[item]) error {
				n, err := q.ReclaimExpired()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d\n", n)
				return nil
			})
		},
	}
}

// toItem keeps valid JSON as is and quotes everything else.
func toItem(arg string) (item, error) {
	var decoded any
	if err := xjson.Unmarshal([]byte(arg), &decoded); err == nil {
		return item(arg), nil
	}
	quoted, err := xjson.Marshal(arg)
	if err != nil {
		return nil, err
	}
	return item(quoted), nil
}
