package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorsmith/go-forktools/internal/signature"
)

type verifyOptions struct {
	summary   string
	signature string
}

func newVerifyCmd() *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the signature of a run summary",
		Long: `Check a summary printed by 'gitfork run' against its HMAC-SIGNATURE line.
The shared secret is read from the HMAC_SECRET environment variable.`,
		Example: `  gitfork verify --summary '{"run_id":"..."}' --signature f7bc83f4...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts)
		},
	}

	cmd.Flags().StringVar(&opts.summary, "summary", "", "Summary JSON exactly as printed")
	cmd.Flags().StringVar(&opts.signature, "signature", "", "Hex-encoded signature to check")
	cmd.MarkFlagRequired("summary")
	cmd.MarkFlagRequired("signature")

	return cmd
}

func runVerify(opts *verifyOptions) error {
	secret := os.Getenv("HMAC_SECRET")
	if secret == "" {
		return fmt.Errorf("HMAC_SECRET not set")
	}

	if err := signature.Verify(secret, []byte(opts.summary), opts.signature); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Println("Signature OK")
	return nil
}
