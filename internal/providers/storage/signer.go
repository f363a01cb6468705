package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.storage",
	fx.Provide(
		fx.Annotate(NewBunnySigner, fx.As(new(Signer))),
	),
)

// Signer issues time-limited direct download links for stored objects.
// Check talks to the object store and may fail; Sign is local and only
// rejects paths or TTLs that Check or config validation already refuse.
type Signer interface {
	Check(ctx context.Context, objectPath string) error
	Sign(objectPath string, ttl time.Duration) (*SignedURL, error)
}

type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

var (
	ErrMisconfigured  = errors.New("storage_misconfigured")
	ErrObjectNotFound = errors.New("object_not_found")
	ErrSigningFailed  = errors.New("signing_failed")
)

// BunnySigner signs pull zone URLs with token authentication after confirming
// the object exists in the storage zone.
type BunnySigner struct {
	zone           string
	accessKey      string
	storageBaseURL string
	pullZoneBase   string
	tokenKey       string
	client         *http.Client
	clock          clock.Clock
	log            *zap.Logger
}

func NewBunnySigner(cfg config.Config, clk clock.Clock, log *zap.Logger) (*BunnySigner, error) {
	storageCfg := cfg.Storage
	host := "storage.bunnycdn.com"
	if region := strings.TrimSpace(storageCfg.Region); region != "" && region != "de" {
		host = region + "." + host
	}
	pullZone := strings.TrimSpace(storageCfg.PullZoneHost)
	if pullZone != "" && !strings.Contains(pullZone, "://") {
		pullZone = "https://" + pullZone
	}
	return newBunnySigner(storageCfg.Zone, storageCfg.AccessKey, "https://"+host, pullZone, storageCfg.TokenKey, storageCfg.Timeout, clk, log)
}

func newBunnySigner(zone, accessKey, storageBaseURL, pullZoneBase, tokenKey string, timeout time.Duration, clk clock.Clock, log *zap.Logger) (*BunnySigner, error) {
	zone = strings.TrimSpace(zone)
	accessKey = strings.TrimSpace(accessKey)
	tokenKey = strings.TrimSpace(tokenKey)
	pullZoneBase = strings.TrimRight(strings.TrimSpace(pullZoneBase), "/")
	if zone == "" || accessKey == "" || tokenKey == "" || pullZoneBase == "" {
		return nil, ErrMisconfigured
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BunnySigner{
		zone:           zone,
		accessKey:      accessKey,
		storageBaseURL: strings.TrimRight(storageBaseURL, "/"),
		pullZoneBase:   pullZoneBase,
		tokenKey:       tokenKey,
		client:         &http.Client{Timeout: timeout},
		clock:          clk,
		log:            log.Named("storage.bunny"),
	}, nil
}

// Check confirms the object exists in the storage zone.
func (s *BunnySigner) Check(ctx context.Context, objectPath string) error {
	urlPath, ok := cleanObjectPath(objectPath)
	if !ok {
		return ErrObjectNotFound
	}
	return s.checkExists(ctx, urlPath)
}

func (s *BunnySigner) Sign(objectPath string, ttl time.Duration) (*SignedURL, error) {
	urlPath, ok := cleanObjectPath(objectPath)
	if !ok {
		return nil, ErrObjectNotFound
	}
	if ttl <= 0 {
		return nil, ErrSigningFailed
	}

	expiresAt := s.clock.Now().Add(ttl).Truncate(time.Second)
	expires := strconv.FormatInt(expiresAt.Unix(), 10)

	query := url.Values{}
	query.Set("token", signToken(s.tokenKey, urlPath, expires))
	query.Set("expires", expires)

	return &SignedURL{
		URL:       s.pullZoneBase + urlPath + "?" + query.Encode(),
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

func (s *BunnySigner) checkExists(ctx context.Context, urlPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.storageBaseURL+"/"+url.PathEscape(s.zone)+urlPath, nil)
	if err != nil {
		return ErrSigningFailed
	}
	req.Header.Set("AccessKey", s.accessKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("storage lookup failed", zap.Error(err))
		return ErrSigningFailed
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrObjectNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		s.log.Warn("storage lookup rejected", zap.Int("status", resp.StatusCode))
		return ErrSigningFailed
	}
}

// signToken is base64url(sha256(key + path + expires)) without padding.
func signToken(key, urlPath, expires string) string {
	sum := sha256.Sum256([]byte(key + urlPath + expires))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// cleanObjectPath returns the escaped absolute URL path for a stored object,
// rejecting empty paths and traversal.
func cleanObjectPath(objectPath string) (string, bool) {
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" || strings.Contains(objectPath, "..") {
		return "", false
	}
	cleaned := path.Clean("/" + objectPath)
	if cleaned == "/" {
		return "", false
	}
	segments := strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return "/" + strings.Join(segments, "/"), true
}
