// Package cmdline provides nanolayer's flag-registration helper: a
// declarative Flag description that binds a pflag value, a default, and one
// or more NANOLAYER_-prefixed environment variable fallbacks onto a cobra
// command, following the apptainer/pkg/cmdline Flag/CommandManager pattern.
package cmdline

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/settings"
)

// Flag declares one command-line flag and its environment-variable
// fallbacks. Value must be a pointer to the flag's underlying variable
// (*bool, *string, or *[]string).
type Flag struct {
	ID            string
	Value         interface{}
	DefaultValue  interface{}
	Name          string
	ShortHand     string
	Usage         string
	EnvKeys       []string
	Hidden        bool
	Required      bool
	WithoutPrefix bool
}

// CommandManager registers Flags onto cobra commands and resolves their
// final value from flag > environment > default, in that priority order.
type CommandManager struct {
	cmds map[string]*cobra.Command
}

// NewCommandManager returns a CommandManager that will register flags
// against cmds, keyed by each command's name (the first word of its Use
// string).
func NewCommandManager(cmds []*cobra.Command) *CommandManager {
	m := &CommandManager{cmds: map[string]*cobra.Command{}}
	for _, c := range cmds {
		m.cmds[c.Name()] = c
	}
	return m
}

// RegisterFlagForCmd adds f to every named command, reading its default from
// the environment (if a matching NANOLAYER_ env var is set) before falling
// back to f.DefaultValue.
func (m *CommandManager) RegisterFlagForCmd(f *Flag, cmdNames ...string) {
	for _, name := range cmdNames {
		cmd, ok := m.cmds[name]
		if !ok {
			continue
		}
		registerOn(cmd.Flags(), f)
	}
}

// RegisterFlagForAll adds f to every command this CommandManager knows
// about, used for globally-shared flags like --verbose.
func (m *CommandManager) RegisterFlagForAll(f *Flag) {
	for _, cmd := range m.cmds {
		registerOn(cmd.PersistentFlags(), f)
	}
}

func registerOn(flags *pflag.FlagSet, f *Flag) {
	resolveEnvDefault(f)

	switch v := f.Value.(type) {
	case *bool:
		def, _ := f.DefaultValue.(bool)
		flags.BoolVarP(v, f.Name, f.ShortHand, def, f.Usage)
	case *string:
		def, _ := f.DefaultValue.(string)
		flags.StringVarP(v, f.Name, f.ShortHand, def, f.Usage)
	case *[]string:
		def, _ := f.DefaultValue.([]string)
		flags.StringSliceVarP(v, f.Name, f.ShortHand, def, f.Usage)
	}

	if f.Hidden {
		_ = flags.MarkHidden(f.Name)
	}
}

// resolveEnvDefault overwrites f.DefaultValue with the first set
// environment variable among f.EnvKeys, each prefixed with NANOLAYER_
// unless WithoutPrefix is set.
func resolveEnvDefault(f *Flag) {
	for _, key := range f.EnvKeys {
		if !f.WithoutPrefix {
			key = "NANOLAYER_" + key
		}
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		switch f.DefaultValue.(type) {
		case bool:
			if b, err := strconv.ParseBool(raw); err == nil {
				f.DefaultValue = b
			}
		case string:
			f.DefaultValue = raw
		case []string:
			f.DefaultValue = []string{raw}
		}
		return
	}
}

// SettingsEnvKeys mirrors the NANOLAYER_ keys settings.Load reads, exposed
// so CLI flag help text and tests can reference them without importing
// settings' unexported prefix constant directly.
var SettingsEnvKeys = struct {
	CLILocation          string
	PropagateCLILocation string
	ForceCLIInstallation string
	Verbose              string
	EnableAnalytics      string
}{
	CLILocation:          settings.EnvCLILocation,
	PropagateCLILocation: settings.EnvPropagateCLILocation,
	ForceCLIInstallation: settings.EnvForceCLIInstallation,
	Verbose:              settings.EnvVerbose,
	EnableAnalytics:      settings.EnvEnableAnalytics,
}
