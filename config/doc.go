// Package config loads and validates WikiGR's orchestrator and
// retrieval configuration from a layered YAML-file-plus-environment
// source, built on spf13/viper and go-playground/validator/v10.
package config
