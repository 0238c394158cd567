package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/sanitize"
)

const settingKeyPrefix = "verification_endpoint."

var ErrInvalidEndpoint = errors.New("verification endpoint must be an absolute http(s) URL")

// SettingsStore is the key-value collaborator persisting endpoint URLs.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Router picks the classifier for a stage: an external service when an
// endpoint is configured, otherwise the fallback.
type Router struct {
	settings SettingsStore
	defaults map[domain.Stage]string
	fallback Classifier
	external func(endpoint string) Classifier
}

// NewRouter builds a router. defaults holds per-stage endpoints used when the
// settings store has no entry for the stage; external builds the classifier
// for a resolved endpoint.
func NewRouter(settings SettingsStore, defaults map[domain.Stage]string, fallback Classifier, external func(endpoint string) Classifier) *Router {
	d := make(map[domain.Stage]string, len(defaults))
	for stage, raw := range defaults {
		if endpoint, ok := NormalizeEndpoint(raw); ok {
			d[stage] = endpoint
		}
	}
	return &Router{settings: settings, defaults: d, fallback: fallback, external: external}
}

func SettingKey(stage domain.Stage) string {
	return settingKeyPrefix + string(stage)
}

// NormalizeEndpoint sanitizes raw and reports whether it is usable.
func NormalizeEndpoint(raw string) (string, bool) {
	endpoint := sanitize.String(raw)
	if endpoint == "" {
		return "", false
	}
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return endpoint, true
}

// Endpoint resolves the verification endpoint for stage. An empty result means
// the stage runs in fallback mode. A stored empty value disables the
// configured default.
func (r *Router) Endpoint(ctx context.Context, stage domain.Stage) (string, error) {
	if r.settings != nil {
		raw, ok, err := r.settings.GetSetting(ctx, SettingKey(stage))
		if err != nil {
			return "", fmt.Errorf("read endpoint setting for %s: %w", stage, err)
		}
		if ok {
			endpoint, _ := NormalizeEndpoint(raw)
			return endpoint, nil
		}
	}
	return r.defaults[stage], nil
}

func (r *Router) Endpoints(ctx context.Context) (map[domain.Stage]string, error) {
	out := make(map[domain.Stage]string)
	for _, stage := range domain.Stages {
		if !stage.IsSubmittable() {
			continue
		}
		endpoint, err := r.Endpoint(ctx, stage)
		if err != nil {
			return nil, err
		}
		out[stage] = endpoint
	}
	return out, nil
}

// SetEndpoint persists the endpoint for stage. An empty value switches the
// stage to fallback mode.
func (r *Router) SetEndpoint(ctx context.Context, stage domain.Stage, raw string) (string, error) {
	if !stage.IsSubmittable() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidStage, stage)
	}
	if r.settings == nil {
		return "", errors.New("no settings store configured")
	}

	endpoint := ""
	if sanitize.String(raw) != "" {
		var ok bool
		endpoint, ok = NormalizeEndpoint(raw)
		if !ok {
			return "", ErrInvalidEndpoint
		}
	}
	if err := r.settings.SetSetting(ctx, SettingKey(stage), endpoint); err != nil {
		return "", fmt.Errorf("store endpoint setting for %s: %w", stage, err)
	}
	return endpoint, nil
}

func (r *Router) ClassifierFor(ctx context.Context, stage domain.Stage) (Classifier, error) {
	endpoint, err := r.Endpoint(ctx, stage)
	if err != nil {
		return nil, err
	}
	if endpoint == "" || r.external == nil {
		return r.fallback, nil
	}
	return r.external(endpoint), nil
}
