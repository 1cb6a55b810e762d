// Command hash-generator prints bcrypt hashes for passwords given as
// arguments, for seeding users directly into a database.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/service/auth"
	"github.com/spf13/pflag"
)

func main() {
	cost := pflag.Int("cost", 0, "bcrypt cost (0 uses the default)")
	pflag.Parse()

	if pflag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: hash-generator [--cost N] PASSWORD...")
		os.Exit(2)
	}
	if failed := hashAll(os.Stdout, verifier(*cost), pflag.Args()); failed > 0 {
		os.Exit(1)
	}
}

func verifier(cost int) *auth.BcryptVerifier {
	if cost <= 0 {
		return auth.NewBcryptVerifier()
	}
	return auth.NewBcryptVerifierWithCost(cost)
}

// hashAll writes one "password: hash" line per password and returns how many
// could not be hashed.
func hashAll(w io.Writer, v *auth.BcryptVerifier, passwords []string) int {
	failed := 0
	for _, password := range passwords {
		if n := len(password); n < 8 || n > 72 {
			fmt.Fprintf(w, "%s: error: %v\n", password, lengthError(n))
			failed++
			continue
		}
		hash, err := v.Hash(password)
		if err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", password, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", password, hash)
	}
	return failed
}

func lengthError(n int) error {
	if n < 8 {
		return domain.ErrPasswordTooShort
	}
	return domain.ErrPasswordTooLong
}
