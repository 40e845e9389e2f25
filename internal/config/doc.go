// Package config loads typed application settings from environment variables
// and an optional config file via viper, then validates them with
// validator/v10 before the server starts.
package config
