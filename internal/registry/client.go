package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/offsetgrid/backend/internal/models"
)

// Client talks to a real registry over HTTP. All calls are bounded by the
// http.Client timeout; 5xx and transport errors surface as ErrUnavailable.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

var _ Port = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrInvalidCredentials
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (string, *models.Identity, error) {
	var out struct {
		Token string          `json:"token"`
		User  models.Identity `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out, nil); err != nil {
		return "", nil, err
	}
	return out.Token, &out.User, nil
}

func (c *Client) ListProjects(ctx context.Context, status string) ([]*models.Project, error) {
	path := "/projects"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []*models.Project
	if err := c.do(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListClasses(ctx context.Context, onlyAvailable bool) ([]*models.Class, error) {
	path := "/classes"
	if onlyAvailable {
		path += "?available=" + strconv.FormatBool(onlyAvailable)
	}
	var out []*models.Class
	if err := c.do(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetClass(ctx context.Context, id string) (*models.Class, error) {
	var out models.Class
	if err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Holdings(ctx context.Context, ownerOrgID string) ([]*models.Balance, error) {
	var out []*models.Balance
	path := "/credits/balance?ownerId=" + url.QueryEscape(ownerOrgID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	for _, b := range out {
		if b.OwnerOrgID == "" {
			b.OwnerOrgID = ownerOrgID
		}
	}
	return out, nil
}

func (c *Client) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	var out struct {
		ReceiptID string `json:"receiptId"`
	}
	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}
	if err := c.do(ctx, http.MethodPost, "/credits/transfer", req, &out, headers); err != nil {
		return "", err
	}
	return out.ReceiptID, nil
}

func (c *Client) Retire(ctx context.Context, req RetireRequest) (string, error) {
	var out struct {
		CertificateID string `json:"certificateId"`
	}
	if err := c.do(ctx, http.MethodPost, "/credits/retire", req, &out, nil); err != nil {
		return "", err
	}
	return out.CertificateID, nil
}

func (c *Client) GetRetirement(ctx context.Context, certificateID string) (*Retirement, error) {
	var out Retirement
	if err := c.do(ctx, http.MethodGet, "/retirements/"+url.PathEscape(certificateID), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}
