package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatcore/internal/crypto"
)

// kdf: derive the account subkeys from -p and print their fingerprints.
func kdfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kdf",
		Short: "Print fingerprints of the subkeys derived from a password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("password required (-p)")
			}
			keys, err := wire.Account.Credentials(cmd.Context(), password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "login key:                 %s\n", crypto.Fingerprint(keys.Login[:]))
			fmt.Fprintf(out, "password verification key: %s\n", crypto.Fingerprint(keys.PasswordVerification[:]))
			fmt.Fprintf(out, "privkey wrapping key:      %s\n", crypto.Fingerprint(keys.Wrapping[:]))
			crypto.Wipe(keys.Login[:])
			crypto.Wipe(keys.PasswordVerification[:])
			crypto.Wipe(keys.Wrapping[:])
			return nil
		},
	}
}
