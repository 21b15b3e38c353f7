package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/taskapi/taskapi/config"
	"github.com/taskapi/taskapi/internal/store/storetest"
	"github.com/taskapi/taskapi/types"
	"golang.org/x/crypto/bcrypt"
)

type testClient struct {
	t      *testing.T
	server *httptest.Server
}

func newTestClient(t *testing.T) (*testClient, *storetest.Users) {
	t.Helper()

	users := storetest.NewUsers()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	router, err := NewRouter(Dependencies{
		Users:  users,
		Tasks:  storetest.NewTasks(),
		Auth:   config.AuthConfig{JWTSecret: "test-secret", BcryptCost: bcrypt.MinCost},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testClient{t: t, server: srv}, users
}

func (c *testClient) do(method, path, token string, body any) (*http.Response, []byte) {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(req)
}

func (c *testClient) send(req *http.Request) (*http.Response, []byte) {
	c.t.Helper()

	resp, err := c.server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func (c *testClient) register(email, password string) {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: expected 201, got %d: %s", email, resp.StatusCode, body)
	}
}

func (c *testClient) loginForm(email, password string) string {
	c.t.Helper()

	form := url.Values{"username": {email}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, c.server.URL+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body := c.send(req)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: expected 200, got %d: %s", email, resp.StatusCode, body)
	}
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		c.t.Fatalf("decode token: %v", err)
	}
	if token.TokenType != "bearer" || token.AccessToken == "" {
		c.t.Fatalf("unexpected token response %s", body)
	}
	return token.AccessToken
}

func decodeTask(t *testing.T, body []byte) types.Task {
	t.Helper()
	var task types.Task
	if err := json.Unmarshal(body, &task); err != nil {
		t.Fatalf("decode task: %v (%s)", err, body)
	}
	return task
}

func TestTwoUserScenario(t *testing.T) {
	c, _ := newTestClient(t)

	c.register("a@x.io", "password1")
	c.register("b@x.io", "password2")
	tokenA := c.loginForm("a@x.io", "password1")
	tokenB := c.loginForm("b@x.io", "password2")

	resp, body := c.do(http.MethodPost, "/tasks", tokenA, map[string]string{"title": "Buy milk"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.StatusCode, body)
	}
	task := decodeTask(t, body)
	if task.Status != types.TaskStatusTodo || task.Priority != types.TaskPriorityMedium {
		t.Fatalf("unexpected defaults %#v", task)
	}
	taskPath := fmt.Sprintf("/tasks/%d", task.ID)

	resp, body = c.do(http.MethodGet, "/tasks", tokenB, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list as B: expected 200, got %d", resp.StatusCode)
	}
	var listed []types.Task
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("B sees A's tasks: %s", body)
	}

	if resp, _ := c.do(http.MethodGet, taskPath, tokenB, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get as B: expected 404, got %d", resp.StatusCode)
	}
	if resp, _ := c.do(http.MethodPut, taskPath, tokenB, map[string]string{"title": "Hacked"}); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update as B: expected 404, got %d", resp.StatusCode)
	}
	if resp, _ := c.do(http.MethodDelete, taskPath, tokenB, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete as B: expected 404, got %d", resp.StatusCode)
	}

	resp, body = c.do(http.MethodGet, taskPath, tokenA, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get as A: expected 200, got %d", resp.StatusCode)
	}
	if got := decodeTask(t, body); got.Title != "Buy milk" {
		t.Fatalf("task was changed by B: %#v", got)
	}

	resp, body = c.do(http.MethodPatch, taskPath, tokenA, map[string]string{"status": "done"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update as A: expected 200, got %d: %s", resp.StatusCode, body)
	}
	updated := decodeTask(t, body)
	if updated.Status != types.TaskStatusDone || updated.Title != "Buy milk" {
		t.Fatalf("unexpected update result %#v", updated)
	}
	if updated.UpdatedAt.Before(task.UpdatedAt) {
		t.Fatalf("updated_at moved backwards")
	}

	resp, body = c.do(http.MethodDelete, taskPath, tokenA, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete as A: expected 200, got %d: %s", resp.StatusCode, body)
	}
	if resp, _ := c.do(http.MethodGet, taskPath, tokenA, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	c, users := newTestClient(t)
	c.register("a@x.io", "password1")
	token := c.loginForm("a@x.io", "password1")

	for name, tc := range map[string]struct{ header string }{
		"missing header":  {header: ""},
		"wrong scheme":    {header: "Basic " + token},
		"garbage token":   {header: "Bearer not-a-token"},
		"truncated token": {header: "Bearer " + token[:len(token)-4]},
	} {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, c.server.URL+"/tasks", nil)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, _ := c.send(req)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
			if resp.Header.Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("expected bearer challenge, got %q", resp.Header.Get("WWW-Authenticate"))
			}
		})
	}

	users.Remove("a@x.io")
	if resp, _ := c.do(http.MethodGet, "/auth/me", token, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("token of removed user: expected 401, got %d", resp.StatusCode)
	}
}

func TestPublicRoutes(t *testing.T) {
	c, _ := newTestClient(t)

	for _, path := range []string{"/", "/health", "/healthz"} {
		if resp, body := c.do(http.MethodGet, path, "", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d: %s", path, resp.StatusCode, body)
		}
	}
}

func TestNewRouterRequiresSecret(t *testing.T) {
	_, err := NewRouter(Dependencies{
		Users: storetest.NewUsers(),
		Tasks: storetest.NewTasks(),
	})
	if err == nil {
		t.Fatalf("expected error without jwt secret")
	}
}
