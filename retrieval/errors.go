package retrieval

import "github.com/wikigr/wikigr/core"

func wrapTransient(op string, err error) error {
	return core.NewError(op, core.KindTransient, "", err)
}
