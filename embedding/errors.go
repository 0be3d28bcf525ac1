package embedding

import (
	"fmt"

	"github.com/wikigr/wikigr/core"
)

func newUnknownProviderError(name string) error {
	return core.NewError("embedding.New", core.KindConfiguration,
		fmt.Sprintf("unknown provider %q", name), nil)
}
