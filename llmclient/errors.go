package llmclient

import (
	"fmt"

	"github.com/wikigr/wikigr/core"
)

func newUnknownProviderError(name string) error {
	return core.NewError("llmclient.New", core.KindConfiguration,
		fmt.Sprintf("unknown provider %q", name), nil)
}

// wrapCallError classifies an error returned by a provider's underlying
// SDK call. Every such error is classified as transient (and so
// retryable), since most SDKs don't expose a stable error type
// hierarchy to classify more precisely than that.
func wrapCallError(op string, err error) error {
	if err == nil {
		return nil
	}
	return core.NewError(op, core.KindTransient, "", err)
}
