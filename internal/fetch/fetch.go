// Package fetch fournit le client HTTP partagé pour les flux RSS, les pages
// catalogue et les fichiers .torrent : timeout borné, User-Agent, taille max.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/insomniacdoll/animeloader/internal/buildinfo"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 10 << 20
)

var ErrTooLarge = errors.New("response body too large")

// StatusError est renvoyée quand le serveur répond >= 400.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http status %d", e.URL, e.Status)
}

// Getter est le contrat consommé par les parsers et le normaliseur.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = buildinfo.UserAgent()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
	}
}

// Get télécharge url et renvoie le corps complet. Aucun verrou ne doit être tenu par l'appelant.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > c.maxBytes {
		return nil, ErrTooLarge
	}
	return b, nil
}
