package platform

import (
	"fmt"

	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// NewAdapters builds one adapter per known platform type from catalog.
func NewAdapters(catalog config.Catalog) ([]driven.PlatformAdapter, error) {
	adapters := make([]driven.PlatformAdapter, 0, len(model.PlatformTypes()))
	for _, pt := range model.PlatformTypes() {
		ep := catalog[pt]

		var (
			adapter driven.PlatformAdapter
			err     error
		)
		switch pt.Kind() {
		case model.KindDirectMessage:
			adapter, err = NewDMAdapter(pt, ep, nil)
		case model.KindPosting:
			adapter, err = NewPostingAdapter(pt, ep, nil)
		case model.KindMetrics:
			adapter, err = NewGitHubAdapter(ep)
		default:
			err = fmt.Errorf("no adapter variant for platform type %s", pt)
		}
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}
