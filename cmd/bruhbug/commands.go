package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bruhbug-service/internal/coordinator"
	"bruhbug-service/internal/diary"
	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/idgen"
	"bruhbug-service/internal/watch"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:          "bruhbug",
		Short:        "Get your bugs roasted",
		Long:         "bruhbug sends a bug description to the roast service and prints the roast.\nThe API is read from BRUHBUG_API_URL and the session from BRUHBUG_TOKEN.",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log transport and watch details to stderr")

	root.AddCommand(
		newLoginCmd(&flags),
		newWhoamiCmd(&flags),
		newLogoutCmd(&flags),
		newSubmitCmd(&flags),
		newDiaryCmd(&flags),
		newFeedCmd(&flags),
	)
	return root
}

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var (
		userID string
		prefs  entity.Preferences
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session on a development server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			tok, user, err := a.api.DevLogin(cmd.Context(), userID, prefs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "signed in as %s\n", byline(user.Prefs))
			fmt.Fprintf(out, "export BRUHBUG_TOKEN=%s\n", tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (minted when empty)")
	cmd.Flags().StringVar(&prefs.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&prefs.Handle, "handle", "", "handle")
	cmd.Flags().StringVar(&prefs.AvatarRef, "avatar", "", "avatar reference")
	return cmd
}

func newWhoamiCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			u, err := a.requireUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", byline(u.Prefs), u.ID)
			return nil
		},
	}
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session in BRUHBUG_TOKEN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			if err := a.api.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newSubmitCmd(flags *rootFlags) *cobra.Command {
	var (
		mode    string
		direct  bool
		private bool
	)
	cmd := &cobra.Command{
		Use:   "submit <bug description>",
		Short: "Submit a bug and wait for its roast",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			user, err := a.requireUser(ctx)
			if err != nil {
				return err
			}
			desc := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if direct {
				norm, err := entity.NormalizeDescription(desc)
				if err != nil {
					return err
				}
				roast, err := a.api.Invoke(ctx, entity.Task{
					Description: norm,
					DocumentID:  idgen.NewID(),
					OwnerID:     user.ID,
					Shared:      !private,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, roast)
				return nil
			}

			wcfg, err := a.watchConfig(mode)
			if err != nil {
				return err
			}
			w, err := watch.New(wcfg, a.api, a.api, a.log)
			if err != nil {
				return err
			}
			coord := coordinator.New(a.sess, a.api, w, a.log)

			sub, err := coord.Submit(ctx, desc, coordinator.Shared(!private))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "job %s dispatched, waiting...\n", sub.JobID)

			res, err := sub.Wait(ctx)
			if err != nil {
				// interrupted: the watch must stay silent from here on
				sub.Cancel()
				return err
			}
			fmt.Fprintln(out, res.Roast)
			a.log.Debug("roast received", zap.String("job_id", res.JobID), zap.String("channel", string(res.Channel)))
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "completion detection: push, poll or push+poll (default BRUHBUG_WATCH_MODE)")
	cmd.Flags().BoolVar(&direct, "direct", false, "run the roast synchronously instead of dispatching a job")
	cmd.Flags().BoolVar(&private, "private", false, "keep the record out of the public feed")
	cmd.MarkFlagsMutuallyExclusive("direct", "mode")
	return cmd
}

func newDiaryCmd(flags *rootFlags) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "diary",
		Short: "List your roasted bugs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			recs, err := diary.NewReader(a.sess, a.api).MyRecords(cmd.Context())
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), diary.Paginate(recs, page, diary.PageSize))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newFeedCmd(flags *rootFlags) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List everyone else's shared roasts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			// anonymous readers see the whole feed
			if err := a.signIn(cmd.Context()); err != nil {
				return err
			}
			recs, err := diary.NewReader(a.sess, a.api).PublicFeed(cmd.Context())
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), diary.Paginate(recs, page, diary.PageSize))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}
