package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/delvicier/fixagent/internal/qr"
	"github.com/spf13/cobra"
)

var loginUser string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := orPrompt(loginUser, "Username: ")
		if err != nil {
			return err
		}
		pw, err := promptSecret("Password: ")
		if err != nil {
			return err
		}
		if err := a.session.Login(cmd.Context(), user, pw); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed in")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.session.Logout(cmd.Context())
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time account setup",
}

var setupTokenCmd = &cobra.Command{
	Use:   "token <token>",
	Short: "Store the setup token shown by the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.session.AcceptSetupToken(cmd.Context(), args[0])
	},
}

var setupResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the stored setup token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.session.ResetSetupToken(cmd.Context())
	},
}

var (
	setupUser   string
	setupQROut  string
	setupQRSize int
)

var setupAccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Create the backend account and receive the recovery key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := orPrompt(setupUser, "Username: ")
		if err != nil {
			return err
		}
		pw, err := promptSecret("Password: ")
		if err != nil {
			return err
		}
		secret, err := a.session.CreateAccount(cmd.Context(), user, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recovery key: %s\n", secret)
		fmt.Fprintln(cmd.OutOrStdout(), "Save it now, then run 'fixagent setup confirm'.")
		if setupQROut != "" {
			return writeSecretQR(a, setupQROut, setupQRSize)
		}
		return nil
	},
}

var setupQRCmd = &cobra.Command{
	Use:   "qr <out.png>",
	Short: "Write the stored recovery key as a QR code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := writeSecretQR(a, args[0], setupQRSize); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "QR written to %s\n", args[0])
		return nil
	},
}

var setupConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Record that the recovery key was saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.session.ConfirmBackup(cmd.Context())
	},
}

func writeSecretQR(a *app, path string, size int) error {
	png, err := a.session.SecretKeyPNG(size)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o600)
}

var recoverKey string

var recoverCmd = &cobra.Command{
	Use:   "recover [qr-image]",
	Short: "Reset the password with the recovery key",
	Long: `recover reads the recovery key from a QR image (or --key), exchanges it
for a reset token and then asks for the new password.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var resetToken string
		switch {
		case len(args) == 1:
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			resetToken, err = a.session.RecoverFromImage(ctx, bytes.NewReader(data))
			if err != nil {
				return err
			}
		default:
			key, err := orPrompt(recoverKey, "Recovery key: ")
			if err != nil {
				return err
			}
			resetToken, err = a.session.RecoverWithKey(ctx, key)
			if err != nil {
				return err
			}
		}

		pw, confirm, err := promptNewPassword()
		if err != nil {
			return err
		}
		if err := a.session.ResetPassword(ctx, resetToken, pw, confirm); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "password updated, sign in again")
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := result(a.client.Profile(cmd.Context()))
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	},
}

var profileUsernameCmd = &cobra.Command{
	Use:   "username <name>",
	Short: "Rename the signed-in user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.session.UpdateUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	},
}

var profilePasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change the signed-in user's password",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := promptSecret("Current password: ")
		if err != nil {
			return err
		}
		pw, confirm, err := promptNewPassword()
		if err != nil {
			return err
		}
		if err := a.session.ChangePassword(cmd.Context(), current, pw, confirm); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "password changed")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "username (prompted when empty)")

	setupAccountCmd.Flags().StringVarP(&setupUser, "user", "u", "", "username (prompted when empty)")
	setupAccountCmd.Flags().StringVar(&setupQROut, "qr", "", "also write the recovery key QR to this PNG")
	setupCmd.PersistentFlags().IntVar(&setupQRSize, "size", qr.DefaultSize, "QR image size in pixels")
	setupCmd.AddCommand(setupTokenCmd, setupResetCmd, setupAccountCmd, setupQRCmd, setupConfirmCmd)

	recoverCmd.Flags().StringVar(&recoverKey, "key", "", "recovery key (prompted when no image is given)")

	profileCmd.AddCommand(profileUsernameCmd, profilePasswordCmd)
}
