/*
Package config loads beacond's runtime settings from environment
variables, with an optional YAML file as a secondary source, via
spf13/viper.

Every key binds individually with BindEnv and a SetDefault, rather than
one AutomaticEnv prefix, so the set of recognized variables is visible
in one place (envKeys). An optional --config file supplies the same
keys for deployments that prefer a checked-in file over a pile of env
vars; environment variables always win when both are set.

# Usage

	cfg, err := config.Load(configPath) // configPath may be ""
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("invalid configuration")
	}
*/
package config
