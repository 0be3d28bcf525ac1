package config

import "github.com/wikigr/wikigr/core"

// wrapConfig always classifies a config-loading failure as
// core.KindConfiguration, regardless of the underlying cause.
func wrapConfig(op, message string, err error) error {
	return core.NewError(op, core.KindConfiguration, message, err)
}
