// Package cll composes urfave/cli/v3 commands out of small registerable parts.
package cll

import "github.com/urfave/cli/v3"

// Registerable mutates the root command: a root action and its flags, or a
// subcommand appended to root.Commands.
type Registerable interface {
	Register(*cli.Command) *cli.Command
}

// Register applies subs to root in order. Later parts see the flags and
// commands added by earlier ones.
//
//	app = cll.Register(app, renderCmd, checkCmd)
func Register(root *cli.Command, subs ...Registerable) *cli.Command {
	for _, s := range subs {
		root = s.Register(root)
	}

	return root
}

// EnvWithPrefix namespaces flag environment sources.
//
//	env := cll.EnvWithPrefix("STAMP_")
//	env("JOBS") // STAMP_JOBS
func EnvWithPrefix(prefix string) func(names ...string) cli.ValueSourceChain {
	return func(names ...string) cli.ValueSourceChain {
		vars := make([]string, 0, len(names))
		for _, name := range names {
			vars = append(vars, prefix+name)
		}

		return cli.EnvVars(vars...)
	}
}
