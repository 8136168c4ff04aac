package control

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/strmio/rtmp/internal/rtmplog"
)

const jwtExpirationSeconds = 120

// Webhook POSTs a signed `rtmp-event` header to an operator's backend when a
// publish session starts and stops, generalizing the teacher's
// SendStartCallback/SendStopCallback pair off the RTMPSession receiver.
type Webhook struct {
	URL     string
	Secret  string
	Subject string
	Host    string
	Port    string
	Client  *http.Client
	Log     *rtmplog.Logger
}

// NewWebhookFromEnv builds a Webhook from CALLBACK_URL/JWT_SECRET/
// CUSTOM_JWT_SUBJECT, matching the teacher's environment-variable surface.
// A nil *Webhook (CALLBACK_URL unset) means "no callback configured" and
// both Send methods on it are no-ops that report success.
func NewWebhookFromEnv(host, port string, log *rtmplog.Logger) *Webhook {
	url := os.Getenv("CALLBACK_URL")
	if url == "" {
		return nil
	}
	subject := os.Getenv("CUSTOM_JWT_SUBJECT")
	if subject == "" {
		subject = "rtmp_event"
	}
	return &Webhook{
		URL:     url,
		Secret:  os.Getenv("JWT_SECRET"),
		Subject: subject,
		Host:    host,
		Port:    port,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Log:     log,
	}
}

func (w *Webhook) sign(claims jwt.MapClaims) (string, error) {
	claims["sub"] = w.Subject
	claims["exp"] = time.Now().Add(jwtExpirationSeconds * time.Second).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(w.Secret))
}

func (w *Webhook) post(tokenb64 string) (*http.Response, error) {
	req, err := http.NewRequest("POST", w.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("rtmp-event", tokenb64)
	return w.Client.Do(req)
}

// SendStart notifies the backend that channel/key started publishing from
// clientIP, returning the stream id the backend assigns via the
// "stream-id" response header (empty if the backend doesn't set one).
func (w *Webhook) SendStart(channel, key, clientIP string) (streamID string, err error) {
	if w == nil {
		return "", nil
	}
	tokenb64, err := w.sign(jwt.MapClaims{
		"event":     "start",
		"channel":   channel,
		"key":       key,
		"client_ip": clientIP,
		"rtmp_host": w.Host,
		"rtmp_port": w.Port,
	})
	if err != nil {
		return "", err
	}
	res, err := w.post(tokenb64)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("control: start callback returned status %d", res.StatusCode)
	}
	return res.Header.Get("stream-id"), nil
}

// SendStop notifies the backend that channel/key (streaming session
// streamID) has stopped publishing.
func (w *Webhook) SendStop(channel, key, streamID, clientIP string) error {
	if w == nil {
		return nil
	}
	tokenb64, err := w.sign(jwt.MapClaims{
		"event":     "stop",
		"channel":   channel,
		"key":       key,
		"stream_id": streamID,
		"client_ip": clientIP,
	})
	if err != nil {
		return err
	}
	res, err := w.post(tokenb64)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("control: stop callback returned status %d", res.StatusCode)
	}
	return nil
}
