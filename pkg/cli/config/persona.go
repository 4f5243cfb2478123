package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/kokoro/pkg/domain/model"
	"github.com/secmon-lab/kokoro/pkg/usecase"
	"github.com/secmon-lab/kokoro/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// Persona holds the path of the persona definition file
type Persona struct {
	path string
}

type personaFile struct {
	Persona model.Persona `toml:"persona"`
}

func (x *Persona) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "persona",
			Aliases:     []string{"p"},
			Usage:       "Path to a persona TOML file (built in persona when omitted)",
			Category:    "Persona",
			Sources:     cli.EnvVars("KOKORO_PERSONA"),
			Destination: &x.path,
		},
	}
}

func (x *Persona) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("path", x.path),
	}
}

// Configure loads the persona file, or returns the built in persona when no
// path is set
func (x *Persona) Configure(ctx context.Context) (*model.Persona, error) {
	if x.path == "" {
		return usecase.DefaultPersona(), nil
	}

	f, err := os.Open(filepath.Clean(x.path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "persona file not found", goerr.V(ConfigPathKey, x.path))
		}
		return nil, goerr.Wrap(err, "failed to open persona file", goerr.V(ConfigPathKey, x.path))
	}
	defer safe.Close(ctx, f)

	var pf personaFile
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&pf); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse persona file",
			goerr.V(ConfigPathKey, x.path),
			goerr.V("error", err.Error()))
	}

	if err := validatePersona(&pf.Persona); err != nil {
		return nil, goerr.Wrap(err, "invalid persona", goerr.V(ConfigPathKey, x.path))
	}
	return &pf.Persona, nil
}

func validatePersona(p *model.Persona) error {
	if p.Name == "" {
		return goerr.Wrap(ErrMissingName, "persona name is empty")
	}
	if len(p.Directives) == 0 {
		return goerr.Wrap(ErrMissingDirectives, "persona has no directives")
	}
	for i, d := range p.Directives {
		if d == "" {
			return goerr.Wrap(ErrInvalidConfig, "empty directive", goerr.V(DirectiveIndexKey, i))
		}
	}
	return nil
}
