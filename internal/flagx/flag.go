// Package flagx contains helpers around pflag flag sets.
package flagx

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// EnvName returns the environment variable of a flag, e.g.
// PREFIX_DATABASE_DSN for "database-dsn".
func EnvName(prefix, flag string) string {
	name := strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
	if prefix == "" {
		return name
	}
	return strings.ToUpper(prefix) + "_" + name
}

// FromEnv sets every flag of fs that was not given on the command line from
// its environment variable, when present. Flags set this way count as
// changed, so they take precedence over file-based configuration.
func FromEnv(fs *pflag.FlagSet, prefix string, lookup func(string) (string, bool)) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		v, ok := lookup(EnvName(prefix, f.Name))
		if !ok {
			return
		}
		if serr := fs.Set(f.Name, v); serr != nil {
			err = fmt.Errorf("env %s: %w", EnvName(prefix, f.Name), serr)
		}
	})
	return err
}
