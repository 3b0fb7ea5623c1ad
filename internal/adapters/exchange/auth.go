package exchange

// auth.go — cliente del identity service que emite las sesiones.
//
// La emisión de credenciales es un colaborador externo: aquí solo se
// consume el endpoint de login/keep-alive con rate limiting y retries.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdentityBase = "https://identitysso.betfair.com/api"

	// El identity service permite ~100 req/min; nos quedamos muy por debajo.
	identityRatePerSec = 1

	authMaxRetries    = 3
	authBaseRetryWait = 500 * time.Millisecond

	// Las sesiones expiran por inactividad; refrescamos con margen.
	defaultKeepAlive = 20 * time.Minute
)

// loginResponse es la respuesta de POST /login y POST /keepAlive.
type loginResponse struct {
	Token   string `json:"token"`
	Product string `json:"product"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

// AuthClient implementa ports.CredentialProvider contra el identity
// service: login con usuario/contraseña y keep-alive del token cacheado.
type AuthClient struct {
	http     *http.Client
	base     string
	appKey   string
	username string
	password string
	limiter  *rate.Limiter

	mu          sync.Mutex
	token       string
	refreshedAt time.Time
	keepAlive   time.Duration
}

// NewAuthClient crea un AuthClient. Si base está vacío usa el identity
// service de producción.
func NewAuthClient(base, appKey, username, password string) *AuthClient {
	if base == "" {
		base = defaultIdentityBase
	}
	return &AuthClient{
		http:      &http.Client{Timeout: 10 * time.Second},
		base:      base,
		appKey:    appKey,
		username:  username,
		password:  password,
		limiter:   rate.NewLimiter(identityRatePerSec, 2),
		keepAlive: defaultKeepAlive,
	}
}

// AppKey devuelve la application key del operador.
func (c *AuthClient) AppKey() string { return c.appKey }

// SessionToken devuelve un token vigente. Reusa el cacheado mientras el
// keep-alive no venza; después intenta keep-alive y cae a login completo.
func (c *AuthClient) SessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Since(c.refreshedAt) < c.keepAlive {
		return c.token, nil
	}

	if c.token != "" {
		if err := c.call(ctx, "/keepAlive", url.Values{}, c.token); err == nil {
			c.refreshedAt = time.Now()
			return c.token, nil
		}
		slog.Debug("session keep-alive failed, falling back to login")
		c.token = ""
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	if err := c.call(ctx, "/login", form, ""); err != nil {
		return "", err
	}
	return c.token, nil
}

// call hace el POST con rate limiting y retries, y actualiza el token.
func (c *AuthClient) call(ctx context.Context, path string, form url.Values, session string) error {
	var lastErr error
	for attempt := 0; attempt <= authMaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("auth: rate limiter: %w", err)
		}

		resp, err := c.post(ctx, path, form, session)
		if err != nil {
			lastErr = err
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("auth: server status %d", resp.StatusCode)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("auth: %w: status %d: %s", ErrAuthentication, resp.StatusCode, string(body))
		}

		var lr loginResponse
		err = json.NewDecoder(resp.Body).Decode(&lr)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("auth: decode response: %w", err)
		}

		if !strings.EqualFold(lr.Status, "SUCCESS") || lr.Token == "" {
			return fmt.Errorf("auth: %w: %s", ErrAuthentication, lr.Error)
		}

		c.token = lr.Token
		c.refreshedAt = time.Now()
		return nil
	}
	return fmt.Errorf("auth: exhausted %d retries: %w", authMaxRetries, lastErr)
}

func (c *AuthClient) post(ctx context.Context, path string, form url.Values, session string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Application", c.appKey)
	if session != "" {
		req.Header.Set("X-Authentication", session)
	}
	return c.http.Do(req)
}

// sleep espera con backoff exponencial respetando el contexto.
func (c *AuthClient) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * authBaseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// StaticCredentials sirve una app key y un token fijos, por ejemplo una
// sesión emitida a mano vía variables de entorno.
type StaticCredentials struct {
	Key   string
	Token string
}

func (s StaticCredentials) AppKey() string { return s.Key }

func (s StaticCredentials) SessionToken(context.Context) (string, error) {
	if s.Token == "" {
		return "", errors.New("exchange.StaticCredentials: empty session token")
	}
	return s.Token, nil
}
