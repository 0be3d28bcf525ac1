package expansion

import "github.com/wikigr/wikigr/core"

func wrapInvalidContent(op, message string) error {
	return core.NewError(op, core.KindInvalidContent, message, nil)
}
