// Package config loads tagtime's settings.
//
// Configuration is a single typed value, one field per setting, read once
// at process start and passed to each component. Files may be YAML
// (.yaml, .yml) or CUE (.cue); unknown fields are rejected. Every loaded
// value is validated before use, so a bad duration or routing rule fails
// at startup rather than at first use.
//
// Example YAML:
//
//	user: alice
//	data_dir: ~/.tagtime
//	average_gap: 45m
//	timeout: 60s
//	late_threshold: 60s
//	graphs:
//	  - work|job
//	  - nafk|-afk
//	submission:
//	  url: https://www.beeminder.com
//	  full_graphs: [nafk]
//	  interval: 5m
package config
