package app

import (
	"fmt"
	"log"
	"time"

	"github.com/nhle/lifeplan/internal/credential"
	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/mirror/filemirror"
	"github.com/nhle/lifeplan/internal/mirror/httpmirror"
	"github.com/nhle/lifeplan/internal/model"
)

// NewMirror builds the mirror selected by cfg. File and HTTP mirrors are
// wrapped in the retry policy of cfg; the HTTP token is read from creds.
func NewMirror(cfg model.MirrorConfig, creds credential.Store, logger *log.Logger, now func() time.Time) (mirror.Mirror, error) {
	var inner mirror.Mirror
	switch cfg.Kind {
	case model.MirrorKindMemory:
		return mirror.NewMemory(now), nil
	case model.MirrorKindFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file mirror needs mirror.path")
		}
		inner = filemirror.New(cfg.Path, now)
	case model.MirrorKindHTTP:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("http mirror needs mirror.base_url")
		}
		inner = httpmirror.NewClient(cfg.BaseURL, loadToken(creds, cfg.CredentialKey, logger), cfg.Timeout())
	default:
		return nil, fmt.Errorf("unknown mirror kind %q", cfg.Kind)
	}

	policy := mirror.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseBackoffMS > 0 {
		policy.BaseBackoff = cfg.BaseBackoff()
	}
	if cfg.TimeoutSec > 0 {
		policy.Timeout = cfg.Timeout()
	}
	return mirror.NewRetrying(inner, policy, logger), nil
}

// loadToken reads the mirror token from the keyring. A missing token is
// logged and left empty; the mirror then answers with an AuthError on
// the first call.
func loadToken(creds credential.Store, key string, logger *log.Logger) string {
	token, err := creds.Get(key)
	if err != nil {
		logger.Printf("mirror credential %q not found, run \"lifeplan credential set\": %v", key, err)
		return ""
	}
	return token
}
