package main

import "github.com/spf13/cobra"

// GlobalFlags are shared by every command.
type GlobalFlags struct {
	ConfigPath string
	Root       string
	LogLevel   string
}

// RunFlags holds flags of the session command.
type RunFlags struct {
	NoWatch       bool
	Yes           bool
	ClientCmd     string
	ServerCmd     string
	MetricsListen string
}

// overrides maps explicitly set flags onto config keys. Flags left at their
// defaults do not mask values from the config file or environment.
func overrides(cmd *cobra.Command, g *GlobalFlags, r *RunFlags) map[string]any {
	o := map[string]any{}
	set := func(flag, key string, v any) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			o[key] = v
		}
	}
	set("root", "root", g.Root)
	set("log-level", "log.level", g.LogLevel)
	if r != nil {
		set("client-cmd", "client.command", r.ClientCmd)
		set("server-cmd", "server.command", r.ServerCmd)
		set("metrics-listen", "metrics.listen", r.MetricsListen)
		if r.NoWatch {
			o["watch.enabled"] = false
		}
	}
	return o
}
