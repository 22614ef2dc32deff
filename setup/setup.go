// Package setup builds a deployment registry from configuration. It is the
// only place that knows about every concrete adapter package.
package setup

import (
	"fmt"
	"log/slog"

	deployment "github.com/haowjy/meridian-deploy-go"
	"github.com/haowjy/meridian-deploy-go/providers/anthropic"
	"github.com/haowjy/meridian-deploy-go/providers/lorem"
	"github.com/haowjy/meridian-deploy-go/providers/mock"
	"github.com/haowjy/meridian-deploy-go/providers/openai"
)

type options struct {
	logger       *slog.Logger
	loremOptions []lorem.Option
}

// Option configures NewRegistry.
type Option func(*options)

// WithLogger sets the logger handed to every adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLoremOptions appends options applied to every lorem deployment.
func WithLoremOptions(opts ...lorem.Option) Option {
	return func(o *options) {
		o.loremOptions = append(o.loremOptions, opts...)
	}
}

// NewRegistry registers a factory for every enabled deployment in cfg.
//
// Factories run lazily on first Resolve. A hosted deployment whose API key
// variable is unset stays registered and resolves to
// deployment.ErrDeploymentUnavailable.
func NewRegistry(cfg *deployment.Config, opts ...Option) (*deployment.Registry, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := deployment.NewRegistry()
	for _, d := range cfg.Enabled() {
		factory, err := o.factory(d)
		if err != nil {
			return nil, err
		}
		reg.Register(d.Name, factory)
		o.logger.Debug("registered deployment", "deployment", d.Name, "kind", d.Kind, "models", len(d.Models))
	}
	return reg, nil
}

func (o *options) factory(d deployment.DeploymentConfig) (deployment.Factory, error) {
	logger := o.logger.With("deployment", d.Name)

	switch d.Kind {
	case deployment.KindMock:
		return func() (deployment.Adapter, error) {
			return mock.NewAdapter(d.Name, d.Models...), nil
		}, nil

	case deployment.KindLorem:
		return func() (deployment.Adapter, error) {
			opts := []lorem.Option{
				lorem.WithModels(d.Models...),
				lorem.WithCapabilities(d.Rerank, d.SearchQueries),
				lorem.WithLogger(logger),
			}
			return lorem.NewAdapter(d.Name, append(opts, o.loremOptions...)...), nil
		}, nil

	case deployment.KindAnthropic:
		return func() (deployment.Adapter, error) {
			a, err := anthropic.NewAdapter(anthropic.Config{
				Name:          d.Name,
				APIKey:        d.APIKey(),
				BaseURL:       d.BaseURL,
				Models:        d.Models,
				SearchQueries: d.SearchQueries,
				Logger:        logger,
			})
			if err != nil {
				return nil, err
			}
			return a, nil
		}, nil

	case deployment.KindOpenAI:
		return func() (deployment.Adapter, error) {
			a, err := openai.NewAdapter(openai.Config{
				Name:          d.Name,
				APIKey:        d.APIKey(),
				BaseURL:       d.BaseURL,
				Models:        d.Models,
				SearchQueries: d.SearchQueries,
				Logger:        logger,
			})
			if err != nil {
				return nil, err
			}
			return a, nil
		}, nil

	default:
		return nil, fmt.Errorf("deployment %s: unknown kind %q", d.Name, d.Kind)
	}
}

// DefaultRegistry builds a registry from the embedded configuration.
func DefaultRegistry(opts ...Option) (*deployment.Registry, error) {
	cfg, err := deployment.DefaultConfig()
	if err != nil {
		return nil, err
	}
	return NewRegistry(cfg, opts...)
}
