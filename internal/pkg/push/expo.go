package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"Ephemera/internal/pkg/logger"
)

const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

var ErrPushRejected = errors.New("push rejected")

// Notifier 设备推送
type Notifier interface {
	Notify(ctx context.Context, token, title, body string) error
}

type expoMessage struct {
	To    string         `json:"to"`
	Sound string         `json:"sound"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type expoResponse struct {
	Data   expoTicket  `json:"data"`
	Errors []expoError `json:"errors"`
}

// ExpoNotifier Expo 推送服务
type ExpoNotifier struct {
	client *resty.Client
	url    string
}

func NewExpoNotifier(url string, timeout time.Duration) *ExpoNotifier {
	if url == "" {
		url = DefaultExpoURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTransport(logger.NewHTTPTransport(nil)).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &ExpoNotifier{client: client, url: url}
}

// Notify 发送一条推送，token 为空时直接返回
func (n *ExpoNotifier) Notify(ctx context.Context, token, title, body string) error {
	if token == "" {
		return nil
	}

	var res expoResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(expoMessage{
			To:    token,
			Sound: "default",
			Title: title,
			Body:  body,
			Data:  map[string]any{},
		}).
		SetResult(&res).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("expo push: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrPushRejected, resp.StatusCode())
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%w: %s %s", ErrPushRejected, res.Errors[0].Code, res.Errors[0].Message)
	}
	if res.Data.Status == "error" {
		return fmt.Errorf("%w: %s %s", ErrPushRejected, res.Data.Details.Error, res.Data.Message)
	}
	return nil
}
