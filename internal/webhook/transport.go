package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrorKind classifies a failed delivery. Failures are reported in Response,
// never returned as Go errors.
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindCORS    ErrorKind = "cors"
	KindNetwork ErrorKind = "network"
	KindHTTP    ErrorKind = "http"
	KindUnknown ErrorKind = "unknown"
)

const (
	DefaultTimeout          = 75 * time.Second
	DefaultMaxResponseBytes = 10_000_000

	successMessage = "Dados enviados com sucesso"
	corsMessage    = "Erro de CORS: O servidor webhook não está configurado para aceitar requisições desta origem. A peça foi salva com sucesso, mas o processamento automático está temporariamente indisponível."
	networkMessage = "Erro de conectividade: Verifique se o servidor webhook está configurado corretamente para CORS"
)

type Response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorKind ErrorKind       `json:"error_kind,omitempty"`
}

var errTimeout = errors.New("webhook timeout")

type Options struct {
	URL              string
	Origin           string
	UserAgent        string
	Timeout          time.Duration
	MaxResponseBytes int64
	Client           *http.Client
	Clock            Clock
	Logger           *logrus.Logger
}

// Transport posts payloads to the processing endpoint with a single attempt.
type Transport struct {
	url       string
	origin    string
	userAgent string
	timeout   time.Duration
	maxBytes  int64
	client    *http.Client
	clock     Clock
	log       *logrus.Logger

	pending singleflight.Group
}

func New(opts Options) *Transport {
	t := &Transport{
		url:       opts.URL,
		origin:    opts.Origin,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxResponseBytes,
		client:    opts.Client,
		clock:     opts.Clock,
		log:       opts.Logger,
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	if t.maxBytes <= 0 {
		t.maxBytes = DefaultMaxResponseBytes
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.clock == nil {
		t.clock = RealClock{}
	}
	if t.log == nil {
		t.log = logrus.StandardLogger()
	}
	return t
}

// Submit delivers p, sharing one in-flight call among concurrent callers with
// the same request key. The key is released once the call settles. Only the
// transport timeout cancels the shared call; caller cancellation does not.
func (t *Transport) Submit(ctx context.Context, p Payload) Response {
	key := RequestKey(p)
	shared := context.WithoutCancel(ctx)
	v, _, joined := t.pending.Do(key, func() (any, error) {
		return t.Execute(shared, p), nil
	})
	if joined {
		t.log.WithField("request_key", key).Debug("webhook: joined in-flight request")
	}
	return v.(Response)
}

// Execute performs exactly one POST of p.
func (t *Transport) Execute(ctx context.Context, p Payload) Response {
	key := RequestKey(p)
	entry := t.log.WithFields(logrus.Fields{"request_key": key, "document_id": p.Document.ID})

	body, err := json.Marshal(p)
	if err != nil {
		return t.fail(entry, KindUnknown, "Erro na comunicação: "+err.Error())
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := t.clock.AfterFunc(t.timeout, func() { cancel(errTimeout) })
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return t.fail(entry, KindUnknown, "Erro na comunicação: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if t.origin != "" {
		req.Header.Set("Origin", t.origin)
	}

	started := time.Now()
	res, err := t.client.Do(req)
	if err != nil {
		kind, msg := t.classify(ctx, err)
		return t.fail(entry, kind, msg)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return t.fail(entry, KindHTTP, fmt.Sprintf("Erro na comunicação: HTTP %d: %s", res.StatusCode, statusText(res)))
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, t.maxBytes+1))
	if err != nil {
		kind, msg := t.classify(ctx, err)
		return t.fail(entry, kind, msg)
	}
	if int64(len(data)) > t.maxBytes {
		return t.fail(entry, KindUnknown, fmt.Sprintf("Erro na comunicação: resposta excede %d bytes", t.maxBytes))
	}
	if !json.Valid(data) {
		return t.fail(entry, KindUnknown, "Erro na comunicação: resposta não é um JSON válido")
	}
	entry.WithField("elapsed", time.Since(started).Round(time.Millisecond)).Info("webhook: delivered")
	return Response{Success: true, Message: successMessage, Data: json.RawMessage(data)}
}

func (t *Transport) fail(entry *logrus.Entry, kind ErrorKind, msg string) Response {
	entry.WithField("error_kind", kind).Warn("webhook: " + msg)
	return Response{Success: false, Message: msg, ErrorKind: kind}
}

func (t *Transport) timeoutMessage() string {
	return fmt.Sprintf("Timeout: O webhook não respondeu dentro do tempo limite de %d segundos", int(t.timeout/time.Second))
}

// classify maps a transport failure to its kind and user-facing message.
func (t *Transport) classify(ctx context.Context, err error) (ErrorKind, string) {
	if errors.Is(context.Cause(ctx), errTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, t.timeoutMessage()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"cors", "access-control-allow-origin", "preflight", "blocked by cors policy"} {
		if strings.Contains(msg, marker) {
			return KindCORS, corsMessage
		}
	}
	if isNetworkError(err, msg) {
		return KindNetwork, networkMessage
	}
	return KindUnknown, "Erro na comunicação: " + err.Error()
}

func isNetworkError(err error, msg string) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, marker := range []string{"network", "failed to fetch", "connection refused", "no such host"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}
	return text
}
