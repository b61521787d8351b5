package verify

import (
	"fmt"

	"github.com/spf13/cobra"

	"fetchverify/pkg/digest"
	"fetchverify/pkg/verify"
)

func GetCommand() *cobra.Command {
	var (
		algorithm string
		expected  string
		remove    bool
	)

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check a file against an expected digest",
		Long: `Check a file against an expected digest.

With --remove a mismatching file is deleted, exactly like a failed download.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := args[0]
			check := verify.CheckFile
			if remove {
				check = verify.VerifyFile
			}
			if err := check(path, expected, algorithm); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s: OK\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", digest.SHA256, "Digest algorithm")
	cmd.Flags().StringVarP(&expected, "expected", "e", "", "Expected digest")
	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the file when it does not match")
	cmd.MarkFlagRequired("expected")
	return cmd
}
