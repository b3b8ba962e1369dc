package cache

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Well known policy and context names.
const (
	PolicyDisabled  = "Disabled"
	PolicyDefault   = "Default"
	PolicyFavorite  = "Favorite"
	ContextDefault  = "Default"
	ContextFavorite = "Favorite"
)

// Config describes which sources are cached and how.
type Config struct {
	// CacheableSources lists the sources that may ever be cached. A source
	// not listed here is never read from or written to the cache, whatever
	// the active policy says.
	CacheableSources []string `json:"cacheable_sources" mapstructure:"cacheable_sources"`

	// DefaultPolicy is the policy active until SetPolicy or SetContext is
	// called. It names an entry of Policies or is a flag expression.
	DefaultPolicy string `json:"default_policy" mapstructure:"default_policy"`

	// Policies are the named policies SetPolicy can select.
	Policies map[string]Policy `json:"policies" mapstructure:"policies"`

	// Contexts map a cache context (e.g. "Favorite") to a policy name.
	Contexts map[string]string `json:"contexts" mapstructure:"contexts"`

	// SourceAliases fold source names before they enter the cache key.
	SourceAliases map[string]string `json:"source_aliases" mapstructure:"source_aliases"`

	// Digest selects the key digest, DigestMD5 (default) or DigestXXHash.
	Digest string `json:"digest" mapstructure:"digest"`
}

// DefaultConfig returns a Config with the stock policies and no cacheable
// sources.
func DefaultConfig() Config {
	return Config{
		DefaultPolicy: PolicyDefault,
		Policies: map[string]Policy{
			PolicyDisabled: DisabledPolicy,
			PolicyDefault: {
				Fallback:        true,
				IncludeRecordID: true,
				IncludeSource:   true,
			},
			PolicyFavorite: {
				Primary:         true,
				Fallback:        true,
				IncludeRecordID: true,
				IncludeSource:   true,
				IncludeUserID:   true,
			},
		},
		Contexts: map[string]string{
			ContextDefault:  PolicyDefault,
			ContextFavorite: PolicyFavorite,
		},
		SourceAliases: DefaultSourceAliases(),
		Digest:        DigestMD5,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DefaultPolicy, validation.Required, validation.By(c.policyRule)),
		validation.Field(&c.CacheableSources, validation.Each(validation.Required)),
		validation.Field(&c.Contexts, validation.Each(validation.Required, validation.By(c.policyRule))),
		validation.Field(&c.Digest, validation.In(DigestMD5, DigestXXHash)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid record cache config")
	}
	return nil
}

// ResolvePolicy returns the named policy, or parses name as a flag
// expression when no policy has that name.
func (c Config) ResolvePolicy(name string) (Policy, error) {
	if p, ok := c.Policies[name]; ok {
		return p, nil
	}
	p, err := ParsePolicy(name)
	if err != nil {
		return Policy{}, fmt.Errorf("unknown cache policy %q: %w", name, err)
	}
	return p, nil
}

func (c Config) policyRule(value any) error {
	name, _ := value.(string)
	if name == "" {
		return nil
	}
	p, err := c.ResolvePolicy(name)
	if err != nil {
		return err
	}
	if p.Enabled() && !p.IncludeRecordID {
		return fmt.Errorf("cache policy %q must include the record id", name)
	}
	return nil
}
