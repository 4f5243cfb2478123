package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
)

// EnsureCredential records apiKey as the latest master credential. A new
// version is created only when it differs from the stored latest one.
func (uc *UseCases) EnsureCredential(ctx context.Context, apiKey string) (*model.MasterCredential, error) {
	if apiKey == "" {
		return nil, nil
	}

	latest, err := uc.repo.Credential().Latest(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get latest credential")
	}
	if latest != nil && latest.APIKey == apiKey {
		return latest, nil
	}

	created, err := uc.repo.Credential().Create(ctx, apiKey, uc.clock())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create credential")
	}

	logging.From(ctx).Info("master credential rotated", "version", created.Version)
	return created, nil
}
