package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type LoginOptions struct {
	*RootOptions
	Username string
	Password string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session",
		Long: `Exchange credentials for a session token and store it locally.

The password is read from stdin when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				opts.Password = strings.TrimRight(line, "\r\n")
			}

			a, zapLogger, err := openApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			defer a.Close()

			sess, err := a.Login(cmd.Context(), opts.Username, opts.Password)
			if err != nil {
				return err
			}
			return writeOutput(cmd, opts.Format, map[string]string{
				"subject": sess.Subject,
				"role":    string(sess.Role),
			}, func(p *printer) {
				p.line("logged in as %s (%s)", sess.Subject, sess.Role)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "account name (required)")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, zapLogger, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			defer a.Close()

			if err := a.Logout(); err != nil {
				return err
			}
			return writeOutput(cmd, rootOpts.Format, map[string]bool{"authenticated": false}, func(p *printer) {
				p.line("logged out")
			})
		},
	}
}
