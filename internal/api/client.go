package api

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rediacc/desktop/internal/config"
	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/logger"
)

const (
	tokenHeader = "Rediacc-RequestToken"
	emailHeader = "Rediacc-UserEmail"
	hashHeader  = "Rediacc-UserHash"

	requestTimeout = 30 * time.Second
)

// Client issues authenticated stored-procedure calls against the middleware.
// Tokens are single-use: each successful call consumes the presented token
// and commits its successor before the response is handed to the caller.
// A mutex serializes authenticated calls so two goroutines can never spend
// the same token.
type Client struct {
	http   *resty.Client
	tokens *TokenStore
	log    logger.Logger

	mu sync.Mutex
	// explicit is a flag- or environment-supplied token. When set it wins
	// over the persisted store for every call this client makes, and its
	// successors are retained in memory rather than written to the store,
	// so an ad-hoc token never clobbers another session's persisted one.
	explicit string
}

// NewClient builds a client for the given settings. verifySSL=false is meant
// for self-signed development middleware only.
func NewClient(settings config.Settings, tokens *TokenStore, log logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	rc := resty.New().
		SetBaseURL(settings.APIURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "rediacc/1.0").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only transport failures are safe to retry. A response, even a
			// bad one, may have consumed the presented token.
			return err != nil && r == nil
		})
	if !settings.VerifySSL {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return &Client{http: rc, tokens: tokens, log: log, explicit: settings.Token}
}

// Tokens exposes the backing store, e.g. for logout.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// Call performs one authenticated stored-procedure request. On success the
// successor token is durably committed before the response is returned; a
// rejected token surfaces as an AUTH error and is never retried.
func (c *Client) Call(endpoint string, params any) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Precedence: explicit flag/env token > persisted store. The source is
	// picked here, once per call, never re-read mid-rotation.
	token := c.explicit
	fromStore := token == ""
	if fromStore {
		var err error
		token, err = c.tokens.Current()
		if err != nil {
			return nil, err
		}
	}
	if token == "" {
		return nil, errors.NewAuthExpired("no request token; pass --token or log in")
	}

	resp, err := c.post(endpoint, params, map[string]string{tokenHeader: token})
	if err != nil {
		return nil, err
	}

	successor := resp.SuccessorToken()
	if successor != "" {
		if fromStore {
			swapped, err := c.tokens.Commit(token, successor)
			if err != nil {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"failed to persist the rotated request token",
					"Check permissions on the config directory, then log in again")
			}
			if !swapped {
				c.log.Debug("token store advanced past the presented token; successor from %s discarded", endpoint)
			}
		} else {
			// An explicit token's successor belongs to this invocation,
			// not to whichever session owns the store.
			c.explicit = successor
			c.log.Debug("retained successor for the explicit token in memory")
		}
	}

	if resp.Failed() {
		return nil, errors.New(errors.ErrExec,
			fmt.Sprintf("%s failed: %s", endpoint, resp.ErrorText()),
			"Check the operation arguments and retry")
	}
	return resp, nil
}

// Login authenticates with credential headers instead of a token and installs
// the issued request token.
func (c *Client) Login(email, passwordHash, sessionName string) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.post("CreateAuthenticationRequest",
		map[string]any{"name": sessionName},
		map[string]string{emailHeader: email, hashHeader: passwordHash})
	if err != nil {
		return nil, err
	}
	if resp.Failed() {
		return nil, errors.New(errors.ErrAuth,
			"login rejected: "+resp.ErrorText(),
			"Check the email and password, then try again")
	}
	token := resp.SuccessorToken()
	if token == "" {
		return nil, errors.New(errors.ErrAuth,
			"login succeeded but no request token was issued",
			"Retry the login; report this if it persists")
	}
	if err := c.tokens.Set(token); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(endpoint string, params any, headers map[string]string) (*Response, error) {
	body := params
	if body == nil {
		body = map[string]any{}
	}

	c.log.Debug("POST /StoredProcedure/%s", endpoint)
	r, err := c.http.R().
		SetHeaders(headers).
		SetBody(body).
		Post("/StoredProcedure/" + endpoint)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConn,
			"could not reach the Rediacc API at "+c.http.BaseURL,
			"Check the API URL and your network connection")
	}

	switch r.StatusCode() {
	case http.StatusUnauthorized:
		return nil, errors.NewAuthExpired(endpoint + " rejected the request token")
	case http.StatusOK:
	default:
		return nil, errors.New(errors.ErrConn,
			fmt.Sprintf("%s returned HTTP %d", endpoint, r.StatusCode()),
			"The middleware may be degraded; retry shortly")
	}

	var resp Response
	if err := json.Unmarshal(r.Body(), &resp); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConn,
			endpoint+" returned a malformed response",
			"The middleware may be degraded; retry shortly")
	}
	resp.Raw = json.RawMessage(r.Body())
	return &resp, nil
}
