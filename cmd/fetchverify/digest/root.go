package digest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fetchverify/pkg/digest"
)

func GetCommand() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "digest [file...]",
		Short: "Print the digest of files (or stdin with -)",
		Example: `  fetchverify digest scan.tif
  fetchverify digest --algorithm crc32 a.jpg b.jpg
  curl -s https://h/f1 | fetchverify digest -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if _, err := digest.Lookup(algorithm); err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(digest.Algorithms(), ", "))
			}
			out := c.OutOrStdout()
			for _, path := range args {
				sum, err := sumPath(c.InOrStdin(), path, algorithm)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %s\n", sum, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", digest.SHA256, "Digest algorithm")
	return cmd
}

func sumPath(stdin io.Reader, path, algorithm string) (string, error) {
	if path == "-" {
		return digest.Sum(stdin, algorithm)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.Sum(f, algorithm)
}
