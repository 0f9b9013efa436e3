package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

// APIError is a non-2xx answer from the planning server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the planning server. Streaming calls are bounded only by their context;
// the others also by timeout.
type Client struct {
	http    *resty.Client
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	c.JSONMarshal = sonic.Marshal
	c.JSONUnmarshal = sonic.Unmarshal
	return &Client{http: c, timeout: timeout}
}

func apiError(resp *resty.Response) error {
	var body errorBody
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(resp.String())
	}
	return &APIError{Status: resp.StatusCode(), Message: body.Error}
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Plan starts a session and feeds every event to handle as it arrives. The returned state is
// valid even when an error is returned part way through the stream.
func (c *Client) Plan(ctx context.Context, req model.TripRequest, handle Handler) (*State, error) {
	return c.stream(ctx, handle, c.http.R().SetBody(req), http.MethodPost, "/api/plan")
}

// Replay streams the recorded events of an earlier session.
func (c *Client) Replay(ctx context.Context, sessionID string, handle Handler) (*State, error) {
	return c.stream(ctx, handle, c.http.R(), http.MethodGet, "/api/sessions/"+sessionID+"/events")
}

func (c *Client) stream(ctx context.Context, handle Handler, r *resty.Request, method, path string) (*State, error) {
	state := &State{}
	resp, err := r.
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Execute(method, path)
	if err != nil {
		return state, err
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		var eb errorBody
		if err := sonic.ConfigDefault.NewDecoder(body).Decode(&eb); err != nil || eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode())
		}
		return state, &APIError{Status: resp.StatusCode(), Message: eb.Error}
	}

	err = Consume(ctx, body, func(ev model.Event) error {
		if err := state.Apply(ev); err != nil {
			return err
		}
		if handle != nil {
			return handle(ev)
		}
		return nil
	})
	return state, err
}

func (c *Client) Trips(ctx context.Context) ([]model.SavedTrip, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out struct {
		Trips []model.SavedTrip `json:"trips"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/trips")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}
	return out.Trips, nil
}

func (c *Client) Trip(ctx context.Context, id string) (*model.SavedTrip, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out model.SavedTrip
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/trips/" + id)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}
	return &out, nil
}

func (c *Client) DeleteTrip(ctx context.Context, id string) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	resp, err := c.http.R().SetContext(ctx).Delete("/api/trips/" + id)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return apiError(resp)
	}
	return nil
}

// Calendar downloads the iCalendar export of a saved trip.
func (c *Client) Calendar(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	resp, err := c.http.R().SetContext(ctx).Get("/api/trips/" + id + "/calendar.ics")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}
	return resp.Body(), nil
}
