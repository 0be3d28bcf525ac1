package extract

import "github.com/wikigr/wikigr/core"

func wrapSchema(op, message string, err error) error {
	return core.NewError(op, core.KindSchemaViolation, message, err)
}
