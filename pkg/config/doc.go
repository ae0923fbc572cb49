// Package config provides configuration loading, validation, and live
// reloading for Atlas.
//
// Configuration is loaded from a YAML file, filled in with defaults, and
// validated before use. Environment variables in the ATLAS_* namespace
// override file values. When reload is enabled, an fsnotify-based watcher
// re-reads the file after debounced change events so that endpoint edits
// take effect without a restart.
//
// Typical usage:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("atlas.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Server.ListenAddress)
package config
