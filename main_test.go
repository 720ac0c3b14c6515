package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"polls/handler"
	"polls/store"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*echo.Echo, store.Store, *bytes.Buffer) {
	s, err := store.OpenBadger("", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))
	h := handler.New(s, log, 5)
	h.Now = func() time.Time { return now }
	return newServer(h, log), s, &logs
}

func serve(e *echo.Echo, method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func Test_Root_Redirects_To_Polls(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := serve(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/polls/", rec.Header().Get(echo.HeaderLocation))
}

func Test_Missing_Trailing_Slash_Redirects(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := serve(e, http.MethodGet, "/polls", "")
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "/polls/", rec.Header().Get(echo.HeaderLocation))
}

func Test_Vote_Without_Trailing_Slash_Keeps_Method(t *testing.T) {
	e, _, _ := newTestServer(t)
	target := "/polls/0190a6f2-0000-7000-8000-000000000000/vote"
	rec := serve(e, http.MethodPost, target, url.Values{"choice": {"x"}}.Encode())
	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
	require.Equal(t, target+"/", rec.Header().Get(echo.HeaderLocation))
}

func Test_Index_Empty(t *testing.T) {
	e, _, logs := newTestServer(t)
	rec := serve(e, http.MethodGet, "/polls/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No polls are available.")
	require.Contains(t, logs.String(), `"msg":"REQUEST"`)
}

func Test_Detail_And_Vote_Flow(t *testing.T) {
	req := require.New(t)
	e, s, _ := newTestServer(t)
	ctx := context.Background()
	past, err := s.CreateQuestion(ctx, "Past Question.", "", now.Add(-5*24*time.Hour))
	req.NoError(err)
	choice, err := s.AddChoice(ctx, past.ID, "Just hacking again")
	req.NoError(err)
	future, err := s.CreateQuestion(ctx, "Future question.", "", now.Add(5*24*time.Hour))
	req.NoError(err)

	rec := serve(e, http.MethodGet, "/polls/"+future.ID+"/", "")
	req.Equal(http.StatusNotFound, rec.Code)
	req.Contains(rec.Body.String(), "Question not found")
	req.NotContains(rec.Body.String(), "Future question.")

	rec = serve(e, http.MethodGet, "/polls/"+past.ID+"/", "")
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "Past Question.")

	form := url.Values{"choice": {choice.ID}}
	rec = serve(e, http.MethodPost, "/polls/"+past.ID+"/vote/", form.Encode())
	req.Equal(http.StatusFound, rec.Code)

	rec = serve(e, http.MethodGet, "/polls/"+past.ID+"/results/", "")
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "Just hacking again -- 1 vote<")
}

func Test_Unknown_Route_Renders_Error_Page(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := serve(e, http.MethodGet, "/nope/", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "<h1>404</h1>")
}

func Test_Static_Assets(t *testing.T) {
	e, _, _ := newTestServer(t)
	rec := serve(e, http.MethodGet, "/static/style.css", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), ".badge")
}
