package store

import "github.com/wikigr/wikigr/core"

func wrapConfig(op, message string, err error) error {
	return core.NewError(op, core.KindConfiguration, message, err)
}

func wrapIntegrity(op, message string, err error) error {
	return core.NewError(op, core.KindStoreIntegrity, message, err)
}
