package network

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/permission"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const fetchSchema = `{
	"type": "object",
	"properties": {
		"url":    {"type": "string", "pattern": "^[hH][tT][tT][pP][sS]?://", "maxLength": 2048},
		"method": {"enum": ["GET", "HEAD"]}
	},
	"required": ["url"],
	"additionalProperties": false
}`

// Config defines outbound request behavior
type Config struct {
	Timeout      time.Duration
	Retries      int
	MaxBodyBytes int
	MaxRedirects int
	UserAgent    string
	Breaker      resilience.Settings
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		Retries:      2,
		MaxBodyBytes: 1 << 20,
		MaxRedirects: 5,
		UserAgent:    "WidgetHost/1.0",
		Breaker: resilience.Settings{
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		},
	}
}

// FetchResult is the result of network.fetch
type FetchResult struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	Truncated bool              `json:"truncated"`
}

type domainsKey struct{}

var errUpstream = errors.New("upstream server error")

// Provider performs outbound HTTP requests for widgets that declared the
// network permission, limited to their allowed domains
type Provider struct {
	cfg      Config
	client   *resty.Client
	breakers *resilience.Group
	logger   *zap.Logger
}

// NewProvider creates a network provider
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	p := &Provider{
		cfg:      cfg,
		breakers: resilience.NewGroup(cfg.Breaker),
		logger:   logging.OrNop(logger),
	}

	p.client = resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRedirectPolicy(resty.RedirectPolicyFunc(p.checkRedirect)).
		AddRetryCondition(retryable)
	return p
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "network",
		Name:        "Network",
		Description: "Outbound HTTP requests to declared domains",
		Category:    types.CategoryNetwork,
		Capabilities: []types.Capability{
			{
				ID:          "network.fetch",
				Name:        "Fetch",
				Description: "fetch data from the internet",
				Permission:  permission.Network,
				Schema:      fetchSchema,
			},
		},
	}
}

// Execute runs a network capability
func (p *Provider) Execute(ctx context.Context, capability string, caller types.Caller, args map[string]interface{}) (interface{}, error) {
	switch capability {
	case "network.fetch":
		return p.fetch(ctx, caller, args)
	default:
		return nil, errs.New(errs.KindInvalidConfig, "unknown capability %q", capability)
	}
}

func (p *Provider) fetch(ctx context.Context, caller types.Caller, args map[string]interface{}) (*FetchResult, error) {
	rawURL, _ := args["url"].(string)
	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return nil, errs.New(errs.KindInvalidConfig, "invalid url %q", rawURL)
	}
	scheme := strings.ToLower(target.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, errs.New(errs.KindInvalidConfig, "unsupported scheme %q", target.Scheme)
	}

	domains := caller.Declared.Network.AllowedDomains
	host := strings.ToLower(target.Hostname())
	if !Allowed(domains, host) {
		return nil, errs.New(errs.KindPermissionDenied, "host %s is not in the allowed domains", host)
	}

	var resp *resty.Response
	breaker := p.breakers.Get(host)
	err = breaker.Do(ctx, func(ctx context.Context) error {
		req := p.client.R().
			SetContext(context.WithValue(ctx, domainsKey{}, domains)).
			SetDoNotParseResponse(true)

		var rerr error
		resp, rerr = req.Execute(method, target.String())
		if rerr != nil {
			return rerr
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return errUpstream
		}
		return nil
	})

	switch {
	case err == nil, errors.Is(err, errUpstream):
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, errs.Wrap(errs.KindInternal, err, "%s is unavailable", host)
	case errs.Is(err, errs.KindPermissionDenied):
		return nil, err
	default:
		p.logger.Debug("Fetch failed",
			logging.Widget(caller.WidgetID),
			zap.String("host", host),
			zap.Error(err))
		return nil, errs.Wrap(errs.KindInternal, err, "fetch %s", host)
	}

	return p.result(resp)
}

func (p *Provider) result(resp *resty.Response) (*FetchResult, error) {
	out := &FetchResult{
		URL:     resp.RawResponse.Request.URL.String(),
		Status:  resp.StatusCode(),
		Headers: make(map[string]string, len(resp.Header())),
	}
	for k, v := range resp.Header() {
		if len(v) > 0 {
			out.Headers[k] = v[0]
		}
	}

	if raw := resp.RawBody(); raw != nil {
		defer raw.Close()
		body, truncated, err := readLimited(raw, p.cfg.MaxBodyBytes)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "read response body")
		}
		out.Body = body
		out.Truncated = truncated
	}
	return out, nil
}

// retryable retries transport failures but never a classified rejection
func retryable(_ *resty.Response, err error) bool {
	if err == nil {
		return false
	}
	var classified *errs.Error
	return !errors.As(err, &classified)
}

// checkRedirect applies the caller's domain list to every hop
func (p *Provider) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= p.cfg.MaxRedirects {
		return errs.New(errs.KindInvalidConfig, "stopped after %d redirects", len(via))
	}
	domains, _ := req.Context().Value(domainsKey{}).([]string)
	host := strings.ToLower(req.URL.Hostname())
	if !Allowed(domains, host) {
		return errs.New(errs.KindPermissionDenied, "redirect to %s is not in the allowed domains", host)
	}
	return nil
}

// Allowed reports whether host matches one of the domain globs.
// An empty list allows nothing.
func Allowed(domains []string, host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, pattern := range domains {
		pattern = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(pattern)), ".")
		if pattern == "" {
			continue
		}
		if ok, err := doublestar.Match(pattern, host); err == nil && ok {
			return true
		}
	}
	return false
}
