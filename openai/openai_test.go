package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/azchat/client"
)

// captured holds what the fake Azure endpoint saw.
type captured struct {
	path       string
	apiVersion string
	apiKey     string
	body       map[string]interface{}
}

// fakeAzure starts an httptest server that records the request and
// answers with the given status and body.
func fakeAzure(t *testing.T, status int, respBody string) (*httptest.Server, *captured) {
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.apiVersion = r.URL.Query().Get("api-version")
		got.apiKey = r.Header.Get("api-key")
		buf, err := io.ReadAll(r.Body)
		if err == nil {
			err = json.Unmarshal(buf, &got.body)
		}
		if err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func transcript() []client.ChatMsg {
	return []client.ChatMsg{
		{Role: client.RoleSystem, Content: "You are a helpful AI assistant."},
		{Role: client.RoleUser, Content: "Hello"},
	}
}

func TestCompleteChat(t *testing.T) {
	resp := `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Hi there!  "},"finish_reason":"stop"}]}`
	srv, got := fakeAzure(t, http.StatusOK, resp)

	ac := NewAzureChatClient(srv.URL+"/", "my-deployment", "secret", "2024-05-01-preview")
	reply, err := ac.CompleteChat(transcript(), client.DefaultParams())
	Tassert(t, err == nil, "unexpected error: %v", err)
	Tassert(t, !reply.IsEmpty(), "expected a reply")
	Tassert(t, reply.Content() == "Hi there!", "unexpected reply: %q", reply.Content())

	Tassert(t, got.path == "/openai/deployments/my-deployment/chat/completions", "unexpected path: %s", got.path)
	Tassert(t, got.apiVersion == "2024-05-01-preview", "unexpected api-version: %s", got.apiVersion)
	Tassert(t, got.apiKey == "secret", "unexpected api-key header: %q", got.apiKey)

	msgs, ok := got.body["messages"].([]interface{})
	Tassert(t, ok && len(msgs) == 2, "expected 2 messages, got %v", got.body["messages"])
	first := msgs[0].(map[string]interface{})
	Tassert(t, first["role"] == "system", "unexpected first role: %v", first["role"])
	Tassert(t, got.body["max_tokens"] == float64(800), "unexpected max_tokens: %v", got.body["max_tokens"])
	_, streaming := got.body["stream"]
	Tassert(t, !streaming || got.body["stream"] == false, "request should not stream")
}

func TestCompleteChatEmpty(t *testing.T) {
	cases := map[string]string{
		"no choices":    `{"id":"c2","choices":[]}`,
		"blank content": `{"id":"c3","choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`,
		"null content":  `{"id":"c4","choices":[{"index":0,"message":{"role":"assistant","content":null}}]}`,
	}
	for name, body := range cases {
		srv, _ := fakeAzure(t, http.StatusOK, body)
		ac := NewAzureChatClient(srv.URL, "dep", "key", "")
		reply, err := ac.CompleteChat(transcript(), client.DefaultParams())
		Tassert(t, err == nil, "%s: unexpected error: %v", name, err)
		Tassert(t, reply.IsEmpty(), "%s: expected empty reply, got %q", name, reply.Content())
	}
}

func TestCompleteChatAPIError(t *testing.T) {
	body := `{"error":{"code":"429","message":"Rate limit is exceeded. Try again later.","type":"rate_limit"}}`
	srv, _ := fakeAzure(t, http.StatusTooManyRequests, body)
	ac := NewAzureChatClient(srv.URL, "dep", "key", "")
	_, err := ac.CompleteChat(transcript(), client.DefaultParams())
	Tassert(t, err != nil, "expected an error")
	var ge *client.GatewayError
	Tassert(t, asGatewayError(err, &ge), "expected a GatewayError, got %T", err)
	Tassert(t, strings.Contains(err.Error(), "Rate limit is exceeded"), "unexpected message: %s", err.Error())
	Tassert(t, strings.Contains(err.Error(), "429"), "expected status in message: %s", err.Error())
}

func TestCompleteChatTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	ac := NewAzureChatClient(url, "dep", "key", "")
	_, err := ac.CompleteChat(transcript(), client.DefaultParams())
	Tassert(t, err != nil, "expected an error")
	Tassert(t, err.Error() != "", "expected a message")
}

func TestCompleteChatUnknownRole(t *testing.T) {
	ac := NewAzureChatClient("http://127.0.0.1:1", "dep", "key", "")
	_, err := ac.CompleteChat([]client.ChatMsg{{Role: "tool", Content: "x"}}, client.DefaultParams())
	Tassert(t, err != nil, "expected an error for an unknown role")
	Tassert(t, strings.Contains(err.Error(), "unknown role"), "unexpected message: %s", err.Error())
}

func asGatewayError(err error, target **client.GatewayError) bool {
	ge, ok := err.(*client.GatewayError)
	if ok {
		*target = ge
	}
	return ok
}
