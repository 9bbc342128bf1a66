// Package config provides configuration structures and utilities for docscout.
// It defines the scrape modes, fetch tuning with its validation rules,
// the URL pattern tables shared by the queue and discovery packages,
// and the optional .docscout YAML file with per-host request settings.
package config
