package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/facility-booking/internal/application"
)

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintln(a.out, "database is up to date")
			return nil
		},
	}
}

func (a *app) allowListCommand() *cobra.Command {
	allowList := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage pre-approved identity keys",
	}
	allowList.AddCommand(&cobra.Command{
		Use:   "add IDENTITY NUMERIC",
		Short: "Pre-approve an identity key so its holder is registered immediately",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := application.ParseAuthKey(args[0], args[1])
			if err != nil {
				return err
			}
			return a.withServices(cmd.Context(), func(ctx context.Context, services *application.Services) error {
				if err := services.Registry.AllowKey(ctx, key); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Identity %s & phone %s added to the allow-list.\n", key.Identity, key.Numeric)
				return nil
			})
		},
	})
	return allowList
}

func (a *app) adminCommand() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrators",
	}
	admin.AddCommand(&cobra.Command{
		Use:   "bootstrap USER_ID",
		Short: "Grant admin rights to a registered user without an existing admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd.Context(), func(ctx context.Context, services *application.Services) error {
				user, err := services.Registry.Bootstrap(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s is now an admin.\n", user.Summary())
				return nil
			})
		},
	})
	return admin
}

func (a *app) remindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Broadcast today's tracked movement timings to every registered user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd.Context(), func(ctx context.Context, services *application.Services) error {
				result, err := services.Reminder.Send(ctx)
				if err != nil {
					return err
				}
				if result.Bookings == 0 {
					fmt.Fprintln(a.out, "no tracked movements today")
					return nil
				}
				fmt.Fprintf(a.out, "reminded %d of %d users about %d bookings\n", result.Delivered, result.Recipients, result.Bookings)
				return nil
			})
		},
	}
}

func (a *app) facilitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "facilities",
		Short: "List the configured facilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "INDEX\tNAME\tAPPROVER\tTRACKED")
			for _, facility := range a.cfg.Catalogue() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", facility.Index, facility.Name, facility.ApproverRole, facility.Tracked)
			}
			return w.Flush()
		},
	}
}

func (a *app) auditCommand() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report overlapping confirmed bookings from today onwards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withServices(cmd.Context(), func(ctx context.Context, services *application.Services) error {
				conflicts, err := services.Bookings.Audit(ctx, a.now(), days)
				if err != nil {
					return err
				}
				if len(conflicts) == 0 {
					fmt.Fprintln(a.out, "no overlapping bookings")
					return nil
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "FACILITY\tBOOKING\tWINDOW\tOVERLAPS")
				for _, conflict := range conflicts {
					name := fmt.Sprintf("#%d", conflict.Resource)
					if facility, err := services.Facilities.Lookup(conflict.Resource); err == nil {
						name = facility.Name
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, conflict.Label,
						application.FormatWindow(conflict.Start, conflict.End), conflict.WithSlotID)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to scan")
	return cmd
}
