package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatcore/internal/crypto"
)

// rotate: replace the encryption keypair and re-wrap every permission.
func rotateCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate your encryption keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if resume {
				committed, err := wire.Rotation.Resume(cmd.Context())
				if err != nil {
					return err
				}
				if committed {
					fmt.Fprintln(out, "Pending rotation committed")
				} else {
					fmt.Fprintln(out, "Pending rotation discarded")
				}
				return nil
			}

			res, err := wire.Rotation.Rotate(cmd.Context())
			if err != nil {
				return err
			}
			wire.Keys.Clear()
			fmt.Fprintf(out, "Rotated to %s (%d permissions)\n",
				crypto.Fingerprint(res.EncryptionPubkey[:]), res.Permissions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "settle a rotation interrupted by a network failure")
	return cmd
}
