package helper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ugorji/go/codec"
)

// Module is one exploit module returned by a search.
type Module struct {
	FullName       string `json:"fullname"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Rank           string `json:"rank"`
	DisclosureDate string `json:"disclosure_date,omitempty"`
}

// Client talks msgpack RPC to a running helper.
type Client struct {
	endpoint string
	user     string
	password string
	http     *http.Client
	handle   codec.MsgpackHandle

	mu    sync.Mutex
	token string
}

// NewClient creates a client for the helper behind h.
func NewClient(h *Handle, timeout time.Duration) *Client {
	c := &Client{
		endpoint: h.Endpoint(),
		user:     h.User,
		password: h.Password,
		http:     &http.Client{Timeout: timeout},
	}
	c.handle.RawToString = true
	c.handle.WriteExt = true
	c.handle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return c
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	req := append([]interface{}{method}, args...)

	var body []byte
	if err := codec.NewEncoderBytes(&body, &c.handle).Encode(req); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "binary/message-pack")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", method, err)
	}

	var out interface{}
	if err := codec.NewDecoderBytes(data, &c.handle).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decoding response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if m, ok := out.(map[string]interface{}); ok {
		if isErr, _ := m["error"].(bool); isErr {
			return nil, fmt.Errorf("%s: %v", method, m["error_message"])
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", method, resp.StatusCode)
	}
	return out, nil
}

// Login authenticates and caches the session token.
func (c *Client) Login(ctx context.Context) error {
	out, err := c.call(ctx, "auth.login", c.user, c.password)
	if err != nil {
		return err
	}
	m, _ := out.(map[string]interface{})
	token, _ := m["token"].(string)
	if m["result"] != "success" || token == "" {
		return fmt.Errorf("auth.login: unexpected response %v", out)
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// SearchModules runs a module search for query.
func (c *Client) SearchModules(ctx context.Context, query string) ([]Module, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, "module.search", token, query)
	if err != nil {
		return nil, err
	}
	list, ok := out.([]interface{})
	if !ok {
		return nil, fmt.Errorf("module.search: unexpected response type %T", out)
	}

	modules := make([]Module, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		modules = append(modules, Module{
			FullName:       str(m["fullname"]),
			Type:           str(m["type"]),
			Name:           str(m["name"]),
			Rank:           str(m["rank"]),
			DisclosureDate: str(m["disclosuredate"]),
		})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].FullName < modules[j].FullName })
	return modules, nil
}

// FilterByVersion keeps modules whose fields mention version.
func FilterByVersion(modules []Module, version string) []Module {
	if version == "" {
		return modules
	}
	var out []Module
	for _, m := range modules {
		if strings.Contains(m.FullName, version) || strings.Contains(m.Name, version) ||
			strings.Contains(m.Rank, version) || strings.Contains(m.DisclosureDate, version) {
			out = append(out, m)
		}
	}
	return out
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
