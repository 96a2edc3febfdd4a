package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatcore/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print device id and key fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := wire.Account.Device()
			if err != nil {
				return err
			}
			kp, err := wire.Account.EncryptionKeypair()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:       %d\n", dev.OwnerID)
			fmt.Fprintf(out, "Device:     %s\n", dev.ID)
			fmt.Fprintf(out, "Encryption: %s\n", crypto.Fingerprint(kp.Public[:]))
			return nil
		},
	}
}
