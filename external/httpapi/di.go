package httpapi

import (
	"github.com/samber/do/v2"

	"github.com/vozlab/escriba/internal/config"
	"github.com/vozlab/escriba/internal/gateway"
	"github.com/vozlab/escriba/internal/recognizer"
	"github.com/vozlab/escriba/internal/repository"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*gateway.Manager](i)
		rec := do.MustInvoke[recognizer.Factory](i)
		repo := do.MustInvoke[repository.SessionRepository](i)
		return NewServer(cfg, manager, rec, repo), nil
	})
}
