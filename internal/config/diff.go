package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LLMChanged bool
	NewLLM     LLMConfig

	SwarmChanged bool
	NewSwarm     SwarmConfig

	SchedulerChanged bool
	NewPollInterval  SchedulerConfig

	// Non-reloadable fields that changed (log warnings only)
	NonReloadable []string
}

// HasChanges reports whether any reloadable field changed.
func (d *ConfigDiff) HasChanges() bool {
	return d.LLMChanged ||
		d.SwarmChanged ||
		d.SchedulerChanged
}

// Diff compares two configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if !reflect.DeepEqual(old.LLM, new.LLM) {
		d.LLMChanged = true
		d.NewLLM = new.LLM
	}

	if !reflect.DeepEqual(old.Swarm, new.Swarm) {
		d.SwarmChanged = true
		d.NewSwarm = new.Swarm
	}

	if old.Scheduler.PollInterval != new.Scheduler.PollInterval {
		d.SchedulerChanged = true
		d.NewPollInterval = new.Scheduler
	}

	// Non-reloadable warnings
	if old.Web.Port != new.Web.Port {
		d.NonReloadable = append(d.NonReloadable, "web.port")
	}
	if old.NATS.Port != new.NATS.Port {
		d.NonReloadable = append(d.NonReloadable, "nats.port")
	}
	if old.NATS.DataDir != new.NATS.DataDir {
		d.NonReloadable = append(d.NonReloadable, "nats.data_dir")
	}
	if old.Store.Path != new.Store.Path {
		d.NonReloadable = append(d.NonReloadable, "store.path")
	}
	if !reflect.DeepEqual(old.Agents, new.Agents) {
		d.NonReloadable = append(d.NonReloadable, "agents")
	}

	return d
}
