package tools

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// newHTTPClient builds the resty client shared by one provider adapter.
func newHTTPClient(baseURL string, timeout time.Duration, retries int) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json")
	client.JSONMarshal = sonic.Marshal
	client.JSONUnmarshal = sonic.Unmarshal
	return client
}
