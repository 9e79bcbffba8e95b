// Package flagx holds helpers for pre-scanning command-line arguments before
// the main flag set is parsed.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns only the allowed flags (and their values) from args.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			// a following token that is not a flag is this flag's value
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// StringFlag extracts a single string flag, registered under every name in
// names, from args. Other arguments are ignored, so callers can read e.g. the
// config path before the full flag set exists. The last occurrence wins.
func StringFlag(args []string, names ...string) string {
	var value string

	allowed := make([]string, 0, len(names)*2)
	for _, n := range names {
		allowed = append(allowed, "-"+n, "--"+n)
	}

	fs := flag.NewFlagSet("prescan", flag.ContinueOnError)
	fs.SetOutput(discard{})
	for _, n := range names {
		fs.StringVar(&value, n, "", "")
	}
	_ = fs.Parse(FilterArgs(args, allowed))

	return value
}

// JsonConfigFlags returns the path given via -c or -config, or "".
func JsonConfigFlags() string {
	return StringFlag(os.Args[1:], "c", "config")
}

// EnvFileFlags returns the dotenv path given via -env-file, or "".
func EnvFileFlags() string {
	return StringFlag(os.Args[1:], "env-file")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
