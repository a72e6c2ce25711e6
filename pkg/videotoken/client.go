// Package videotoken provides the video-chat token sources a town controller
// mints join capabilities from. Two implementations ship: a local HS256
// signer for providers whose SDKs mint tokens client-side, and a remote
// client for providers that expose a token-minting endpoint, protected by a
// circuit breaker.
package videotoken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/metrics"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// LocalSigner mints video grant tokens in-process: an HS256 JWT whose
// identity is the player and whose video grant is scoped to the town.
type LocalSigner struct {
	apiKey string
	secret []byte
	ttl    time.Duration
}

// NewLocalSigner creates a signer issuing tokens valid for ttl.
func NewLocalSigner(apiKey, apiSecret string, ttl time.Duration) *LocalSigner {
	return &LocalSigner{
		apiKey: apiKey,
		secret: []byte(apiSecret),
		ttl:    ttl,
	}
}

// GetTokenForTown mints a token granting playerID access to townID's room.
func (s *LocalSigner) GetTokenForTown(ctx context.Context, townID types.TownIDType, playerID types.PlayerIDType) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.apiKey,
		"sub": string(playerID),
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"grants": map[string]any{
			"identity": string(playerID),
			"video": map[string]any{
				"room": string(townID),
			},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		metrics.VideoTokenRequests.WithLabelValues("local", "error").Inc()
		return "", fmt.Errorf("failed to sign video token: %w", err)
	}
	metrics.VideoTokenRequests.WithLabelValues("local", "ok").Inc()
	return signed, nil
}

// Healthy always succeeds; the signer has no external dependency.
func (s *LocalSigner) Healthy(ctx context.Context) error { return nil }

// RemoteClient mints tokens by calling the provider's token endpoint. The
// call path is wrapped in a circuit breaker so a failing provider sheds load
// fast instead of stalling every join.
type RemoteClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

type tokenRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// NewRemoteClient creates a client for the provider at baseURL.
func NewRemoteClient(baseURL, apiKey string) *RemoteClient {
	st := gobreaker.Settings{
		Name:        "video-token-provider",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	return &RemoteClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// GetTokenForTown requests a token for playerID in townID's room.
func (c *RemoteClient) GetTokenForTown(ctx context.Context, townID types.TownIDType, playerID types.PlayerIDType) (string, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.mintToken(ctx, townID, playerID)
	})
	if err != nil {
		metrics.VideoTokenRequests.WithLabelValues("remote", "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.CircuitBreakerFailures.WithLabelValues("video-token-provider").Inc()
			return "", fmt.Errorf("video token provider unavailable: %w", err)
		}
		return "", err
	}
	metrics.VideoTokenRequests.WithLabelValues("remote", "ok").Inc()
	return resp.(string), nil
}

func (c *RemoteClient) mintToken(ctx context.Context, townID types.TownIDType, playerID types.PlayerIDType) (string, error) {
	body, err := json.Marshal(tokenRequest{
		Room:     string(townID),
		Identity: string(playerID),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tokens", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("token provider returned %d: %s", res.StatusCode, payload)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if parsed.Token == "" {
		return "", errors.New("token provider returned an empty token")
	}
	return parsed.Token, nil
}

// Healthy probes the provider's health endpoint.
func (c *RemoteClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token provider unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("token provider health returned %d", res.StatusCode)
	}
	return nil
}
