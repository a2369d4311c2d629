package gateway

import (
	"github.com/samber/do/v2"
	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/dispatch"
	"github.com/vozlab/escriba/internal/recognizer"
	"github.com/vozlab/escriba/internal/repository"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rec := do.MustInvoke[recognizer.Factory](i)
		df := do.MustInvoke[dispatch.Factory](i)
		repo := do.MustInvoke[repository.SessionRepository](i)
		return NewManager(cfg, rec, df, repo), nil
	})
}
