package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

// BaseAdapter sends requests through a clients.Client and maps failures.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
}

// NewBaseAdapter creates a BaseAdapter.
func NewBaseAdapter(client *clients.Client, serviceName string) BaseAdapter {
	return BaseAdapter{client: client, serviceName: serviceName}
}

// Client returns the underlying HTTP client.
func (a *BaseAdapter) Client() *clients.Client {
	return a.client
}

// ServiceName returns the backend name used in errors.
func (a *BaseAdapter) ServiceName() string {
	return a.serviceName
}

// Request describes one backend call. Body is sent as is when it is a
// []byte and JSON encoded otherwise.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

func (r Request) target() string {
	if len(r.Query) == 0 {
		return r.Path
	}

	return r.Path + "?" + r.Query.Encode()
}

func (r Request) payload() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		return data, nil
	}
}

// Do sends r. On a 2xx it returns the response, whose body the caller must
// close; anything else comes back as a domain error.
func (a *BaseAdapter) Do(ctx context.Context, r Request, t Target) (*http.Response, error) {
	body, err := r.payload()
	if err != nil {
		return nil, err
	}

	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	if _, ok := r.Body.([]byte); !ok && body != nil && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	logging.FromContext(ctx).Log(ctx, logging.LevelTrace, "backend request",
		slog.String("method", r.Method),
		slog.String("path", r.Path),
		slog.String("operation", t.Operation))

	resp, err := a.client.Send(ctx, r.Method, r.target(), body, header)
	if err != nil {
		return nil, MapHTTPError(nil, err, a.serviceName, t)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()

		return nil, MapHTTPError(resp, nil, a.serviceName, t)
	}

	return resp, nil
}

// Fetch sends r and decodes the JSON response into out.
func (a *BaseAdapter) Fetch(ctx context.Context, r Request, t Target, out any) error {
	resp, err := a.Do(ctx, r, t)
	if err != nil {
		return err
	}

	if err := decodeInto(resp.Body, out); err != nil {
		return fmt.Errorf("%s: %w", t.Operation, err)
	}

	return nil
}

// Exec sends r and discards the response body.
func (a *BaseAdapter) Exec(ctx context.Context, r Request, t Target) error {
	resp, err := a.Do(ctx, r, t)
	if err != nil {
		return err
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.Body.Close()
}

// DecodeResponse reads and decodes a JSON body, closing it.
func DecodeResponse[T any](body io.ReadCloser) (*T, error) {
	var out T
	if err := decodeInto(body, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func decodeInto(body io.ReadCloser, out any) error {
	if body == nil {
		return fmt.Errorf("response body is nil")
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// Translator validates an external DTO and converts it to a domain value.
type Translator[External any, Domain any] func(ext *External) (Domain, error)

// TranslateSlice applies translate to every item, stopping at the first
// failure.
func TranslateSlice[E any, D any](items []E, translate Translator[E, D]) ([]D, error) {
	result := make([]D, 0, len(items))

	for i := range items {
		translated, err := translate(&items[i])
		if err != nil {
			return nil, fmt.Errorf("translating item %d: %w", i, err)
		}

		result = append(result, translated)
	}

	return result, nil
}
