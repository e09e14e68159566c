package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/delvicier/fixagent/internal/testutil"
	"github.com/delvicier/fixagent/internal/transport"
	"github.com/delvicier/fixagent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	baseURL string
	token   string
}

func (s stubSource) BaseURL() string { return s.baseURL }
func (s stubSource) Token() string   { return s.token }

func newTestClient(t *testing.T, handler http.Handler, token string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src := stubSource{baseURL: srv.URL, token: token}
	hc := transport.NewClient(src, testutil.Logger(), transport.Options{})
	return New(hc, src, testutil.Logger(), WithUserAgent("fixagent/test")), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/status", r.URL.Path)
		assert.Equal(t, "fixagent/test", r.UserAgent())
		writeJSON(w, http.StatusOK, map[string]bool{"isConfigured": true})
	}), "")

	res, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
	require.NotNil(t, res.Body)
	assert.True(t, res.Body.IsConfigured)
}

func TestLogin_SendsSpanishFields(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin", body["usuario"])
		assert.Equal(t, "s3cret", body["contraseña"])
		writeJSON(w, http.StatusCreated, map[string]string{"access_token": "jwt-abc"})
	}), "")

	res, err := c.Login(context.Background(), models.Credentials{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "jwt-abc", res.Body.AccessToken)
}

func TestLogin_UnauthorizedIsAResultNotAnError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"statusCode": 401, "message": "Credenciales inválidas", "error": "Unauthorized",
		})
	}), "")

	res, err := c.Login(context.Background(), models.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Nil(t, res.Body)
	require.NotNil(t, res.Problem)
	assert.Equal(t, "Unauthorized", res.Problem.Title)
	assert.Equal(t, "Credenciales inválidas", res.Problem.Detail)
}

func TestLogin_InvalidRequestNotSent(t *testing.T) {
	called := false
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), "")

	_, err := c.Login(context.Background(), models.Credentials{Username: "admin"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, called)
}

func TestSetupAndReset_UsePresetBearer(t *testing.T) {
	var got []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Path+" "+r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/setup":
			writeJSON(w, http.StatusCreated, map[string]string{"message": "ok", "secret_key": "SK-1"})
		case "/auth/reset-password":
			writeJSON(w, http.StatusOK, map[string]string{"message": "done"})
		}
	}), "stored-token")

	res, err := c.Setup(context.Background(), "setup-123", models.Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "SK-1", res.Body.SecretKey)

	_, err = c.ResetPassword(context.Background(), "reset-9", "newpass")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/auth/setup Bearer setup-123",
		"/auth/reset-password Bearer reset-9",
	}, got)
}

func TestStoredTokenAttached(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stored-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []models.Client{{ID: 1, Name: "Ana", Phone1: "099"}})
	}), "stored-token")

	res, err := c.ListClients(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Body)
	assert.Len(t, *res.Body, 1)
	assert.Equal(t, "Ana", (*res.Body)[0].Name)
}

func TestResourcePathsAndMethods(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			if r.URL.Path == "/machines/by-order/7" || r.URL.Path == "/orders" {
				writeJSON(w, http.StatusOK, []any{})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": 7})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"id": 7})
		}
	}), "t")
	ctx := context.Background()

	_, err := c.GetOrder(ctx, 7)
	require.NoError(t, err)
	_, err = c.ListOrders(ctx)
	require.NoError(t, err)
	_, err = c.ListMachinesByOrder(ctx, 7)
	require.NoError(t, err)
	paid := true
	_, err = c.UpdateOrder(ctx, 7, models.UpdateOrderRequest{Paid: &paid})
	require.NoError(t, err)
	_, err = c.CreateSpace(ctx, models.SpaceRequest{Alias: "A1", Color: "#ff0000"})
	require.NoError(t, err)
	del, err := c.DeleteMachine(ctx, 7)
	require.NoError(t, err)
	assert.True(t, del.OK())

	assert.Equal(t, []call{
		{http.MethodGet, "/orders/7"},
		{http.MethodGet, "/orders"},
		{http.MethodGet, "/machines/by-order/7"},
		{http.MethodPatch, "/orders/7"},
		{http.MethodPost, "/spaces"},
		{http.MethodDelete, "/machines/7"},
	}, calls)
}

func TestDecodeError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}), "")

	res, err := c.Profile(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestTransportError_Unconfigured(t *testing.T) {
	src := stubSource{token: "secret-abc"}
	var dialled []string
	hc := transport.NewClient(src, testutil.Logger(), transport.Options{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			dialled = append(dialled, r.URL.String())
			return nil, errors.New("connection refused")
		}),
	})
	c := New(hc, src, testutil.Logger())

	for name, call := range map[string]func() error{
		"status":  func() error { _, err := c.Status(context.Background()); return err },
		"clients": func() error { _, err := c.ListClients(context.Background()); return err },
	} {
		t.Run(name, func(t *testing.T) {
			err := call()
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.True(t, te.Unconfigured)
			assert.ErrorIs(t, err, ErrNotConfigured)
			assert.NotContains(t, err.Error(), "secret-abc")
		})
	}
	assert.Empty(t, dialled, "no request may leave without a base URL")
}

func TestTransportError_Configured(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src := stubSource{baseURL: url}
	c := New(transport.NewClient(src, testutil.Logger(), transport.Options{}), src, testutil.Logger())

	_, err := c.Status(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, errors.Is(err, ErrNotConfigured))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDecodeProblem(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantTitle  string
		wantDetail string
		wantMsgs   int
	}{
		{
			name:       "nest string message",
			status:     409,
			body:       `{"statusCode":409,"message":"Ya existe","error":"Conflict"}`,
			wantTitle:  "Conflict",
			wantDetail: "Ya existe",
			wantMsgs:   1,
		},
		{
			name:       "nest validation list",
			status:     400,
			body:       `{"statusCode":400,"message":["nombre must be a string","telf1 should not be empty"],"error":"Bad Request"}`,
			wantTitle:  "Bad Request",
			wantDetail: "nombre must be a string; telf1 should not be empty",
			wantMsgs:   2,
		},
		{
			name:       "rfc 7807",
			status:     404,
			body:       `{"type":"about:blank","title":"Not Found","status":404,"detail":"order 9 not found"}`,
			wantTitle:  "Not Found",
			wantDetail: "order 9 not found",
		},
		{
			name:       "plain text",
			status:     502,
			body:       "Bad gateway",
			wantTitle:  "Bad Gateway",
			wantDetail: "Bad gateway",
		},
		{
			name:      "empty",
			status:    500,
			body:      "",
			wantTitle: "Internal Server Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DecodeProblem(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.wantTitle, p.Title)
			assert.Equal(t, tt.wantDetail, p.Detail)
			assert.Len(t, p.Messages, tt.wantMsgs)
		})
	}
}

func TestImageURL(t *testing.T) {
	c := New(http.DefaultClient, stubSource{baseURL: "http://192.168.1.50:4000"}, testutil.Logger())
	assert.Equal(t, "http://192.168.1.50:4000/images/abc.jpg", c.ImageURL("images/abc.jpg"))
	assert.Equal(t, "http://192.168.1.50:4000/images/abc.jpg", c.ImageURL("/images/abc.jpg"))
	assert.Equal(t, "https://cdn/x.jpg", c.ImageURL("https://cdn/x.jpg"))
	assert.Equal(t, "", c.ImageURL(""))

	unset := New(http.DefaultClient, stubSource{}, testutil.Logger())
	assert.Equal(t, "", unset.ImageURL("images/abc.jpg"))
}

func noisyImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func TestPrepareJPEG_SmallJPEGUnchanged(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil))

	out, err := PrepareJPEG(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), out)
}

func TestPrepareJPEG_LargePNGIsScaledAndCompressed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradientImage(2000, 1500)))

	out, err := PrepareJPEG(buf.Bytes())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), MaxImageBytes)
	assert.Equal(t, "image/jpeg", http.DetectContentType(out))

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, MaxImageWidth)
	assert.LessOrEqual(t, cfg.Height, MaxImageHeight)
	// Aspect ratio 4:3 is kept: height bound wins.
	assert.Equal(t, 960, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
}

func TestPrepareJPEG_RejectsGarbage(t *testing.T) {
	_, err := PrepareJPEG([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = PrepareJPEG(nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUploadImage_Multipart(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "foto.jpg", hdr.Filename)
		assert.Equal(t, "image/jpeg", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		assert.LessOrEqual(t, len(data), MaxImageBytes)
		writeJSON(w, http.StatusCreated, map[string]string{"message": "ok", "path": "images/abc.jpg"})
	}), "t")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noisyImage(300, 200)))

	res, err := c.UploadImage(context.Background(), "foto.png", &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "images/abc.jpg", res.Body.Path)
	assert.Equal(t, c.ImageURL(res.Body.Path), c.source.BaseURL()+"/images/abc.jpg")
}
