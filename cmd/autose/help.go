package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagGroup defines a named group of flags for help output.
type flagGroup struct {
	title string
	flags []string
}

// flagGroups defines the logical groupings for CLI flags.
// Flags not listed here appear under "Other Flags".
var flagGroups = []flagGroup{
	{
		title: "Task",
		flags: []string{"follow", "patch", "model", "diff-mode"},
	},
	{
		title: "Connection",
		flags: []string{"api-url", "api-key"},
	},
	{
		title: "Output",
		flags: []string{"output-dir", "plain", "verbose"},
	},
	{
		title: "Advanced",
		flags: []string{"no-config"},
	},
}

// lookupFlag finds a flag defined on c or inherited from its parents.
func lookupFlag(c *cobra.Command, name string) *pflag.Flag {
	if f := c.LocalFlags().Lookup(name); f != nil {
		return f
	}
	return c.InheritedFlags().Lookup(name)
}

// setGroupedUsage configures the command to display flags in logical groups.
// Subcommands inherit the usage function.
func setGroupedUsage(cmd *cobra.Command) {
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		out := c.OutOrStderr()
		fmt.Fprintf(out, "Usage:\n  %s\n", c.UseLine())
		if c.HasAvailableSubCommands() {
			fmt.Fprintf(out, "  %s [command]\n", c.CommandPath())
		}

		if c.HasAvailableSubCommands() {
			fmt.Fprintf(out, "\nAvailable Commands:\n")
			for _, sub := range c.Commands() {
				if !sub.IsAvailableCommand() && sub.Name() != "help" {
					continue
				}
				fmt.Fprintf(out, "  %-16s %s\n", sub.Name(), sub.Short)
			}
		}

		// Track which flags have been placed in a group
		grouped := make(map[string]bool)

		for _, group := range flagGroups {
			fs := pflag.NewFlagSet(group.title, pflag.ContinueOnError)
			for _, name := range group.flags {
				if f := lookupFlag(c, name); f != nil {
					fs.AddFlag(f)
					grouped[name] = true
				}
			}
			if usages := fs.FlagUsages(); strings.TrimSpace(usages) != "" {
				fmt.Fprintf(out, "\n%s:\n%s", group.title, usages)
			}
		}

		// Collect ungrouped flags (help, version, any new flags not yet categorized)
		other := pflag.NewFlagSet("other", pflag.ContinueOnError)
		addUngrouped := func(f *pflag.Flag) {
			if !grouped[f.Name] && other.Lookup(f.Name) == nil {
				other.AddFlag(f)
			}
		}
		c.LocalFlags().VisitAll(addUngrouped)
		c.InheritedFlags().VisitAll(addUngrouped)
		if usages := other.FlagUsages(); strings.TrimSpace(usages) != "" {
			fmt.Fprintf(out, "\nOther Flags:\n%s", usages)
		}

		if c.HasAvailableSubCommands() {
			fmt.Fprintf(out, "\nUse \"%s [command] --help\" for more information about a command.\n", c.CommandPath())
		}
		return nil
	})
}
