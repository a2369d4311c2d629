package dispatch

import (
	"github.com/samber/do/v2"
	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/dispatch"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (dispatch.Factory, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewFactory(c), nil
	})
}
