package ociregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/ociref"
)

func newTestRef(server *httptest.Server) ociref.Ref {
	host := strings.TrimPrefix(server.URL, "https://")
	return ociref.Ref{Registry: host, Path: "devcontainers/features/go", Version: "1.0.0"}
}

func TestFetchManifestAnonymous(t *testing.T) {
	const manifestJSON = `{"mediaType":"application/vnd.oci.image.manifest.v1+json","config":{"mediaType":"application/vnd.oci.image.config.v1+json","digest":"sha256:abc","size":2},"layers":[]}`

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("anonymous request should not carry an Authorization header, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(manifestJSON))
	}))
	defer server.Close()

	c := &Client{HTTPClient: server.Client()}
	m, err := c.FetchManifest(context.Background(), newTestRef(server))
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if m.Config.Digest != "sha256:abc" {
		t.Fatalf("Config.Digest = %q", m.Config.Digest)
	}
}

func TestFetchManifestUpgradesToBearerOn401(t *testing.T) {
	const manifestJSON = `{"mediaType":"application/vnd.oci.image.manifest.v1+json","config":{"digest":"sha256:abc","size":2},"layers":[]}`
	var tokenServer *httptest.Server
	var manifestRequests int

	manifestHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manifestRequests++
		if r.Header.Get("Authorization") == "Bearer granted-token" {
			w.Write([]byte(manifestJSON))
			return
		}
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s/token",service="registry.example",scope="repository:devcontainers/features/go:pull"`, tokenServer.URL))
		w.WriteHeader(http.StatusUnauthorized)
	})

	registryServer := httptest.NewTLSServer(manifestHandler)
	defer registryServer.Close()

	tokenServer = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("scope"); got != "repository:devcontainers/features/go:pull" {
			t.Errorf("token request scope = %q", got)
		}
		w.Write([]byte(`{"token":"granted-token"}`))
	}))
	defer tokenServer.Close()

	// The realm URL above is filled in after tokenServer starts; rebuild the
	// handler closure's reference by reassigning via the captured pointer.
	c := &Client{HTTPClient: registryServer.Client()}
	// registryServer.Client() trusts only registryServer's own cert; swap in a
	// client whose transport trusts both test servers' certs.
	c.HTTPClient = &http.Client{Transport: &multiCertTransport{servers: []*httptest.Server{registryServer, tokenServer}}}

	m, err := c.FetchManifest(context.Background(), newTestRef(registryServer))
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if m.Config.Digest != "sha256:abc" {
		t.Fatalf("Config.Digest = %q", m.Config.Digest)
	}
	if manifestRequests != 2 {
		t.Fatalf("manifestRequests = %d, want 2 (anonymous + bearer retry)", manifestRequests)
	}
}

// multiCertTransport routes requests to whichever test server's client trusts
// the target host, letting a single http.Client talk to two independent
// httptest.NewTLSServer instances (the registry and its token endpoint).
type multiCertTransport struct {
	servers []*httptest.Server
}

func (m *multiCertTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for _, s := range m.servers {
		host := strings.TrimPrefix(s.URL, "https://")
		if req.URL.Host == host {
			return s.Client().Transport.RoundTrip(req)
		}
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestGetDoesNotCacheTokenAcrossCalls(t *testing.T) {
	const manifestJSON = `{"mediaType":"application/vnd.oci.image.manifest.v1+json","config":{"digest":"sha256:abc","size":2},"layers":[]}`
	var tokenServer *httptest.Server
	var tokenRequests int

	registryServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer granted-token" {
			w.Write([]byte(manifestJSON))
			return
		}
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s/token",service="registry.example",scope="repository:devcontainers/features/go:pull"`, tokenServer.URL))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer registryServer.Close()

	tokenServer = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		w.Write([]byte(`{"token":"granted-token"}`))
	}))
	defer tokenServer.Close()

	c := &Client{HTTPClient: &http.Client{Transport: &multiCertTransport{servers: []*httptest.Server{registryServer, tokenServer}}}}

	if _, err := c.FetchManifest(context.Background(), newTestRef(registryServer)); err != nil {
		t.Fatalf("FetchManifest (1st call): %v", err)
	}
	if _, err := c.FetchManifest(context.Background(), newTestRef(registryServer)); err != nil {
		t.Fatalf("FetchManifest (2nd call): %v", err)
	}

	if tokenRequests != 2 {
		t.Fatalf("tokenRequests = %d, want 2 (every call re-challenges instead of reusing a cached token)", tokenRequests)
	}
}

func TestFetchBlobVerifiesDigest(t *testing.T) {
	content := []byte("feature bundle contents")
	sum := sha256.Sum256(content)
	digest := "sha256:" + hex.EncodeToString(sum[:])

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	c := &Client{HTTPClient: server.Client()}
	got, err := c.FetchBlob(context.Background(), newTestRef(server), Descriptor{Digest: digest, Size: int64(len(content))})
	if err != nil {
		t.Fatalf("FetchBlob: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("FetchBlob() = %q", got)
	}
}

func TestFetchBlobRejectsHashMismatch(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered contents"))
	}))
	defer server.Close()

	c := &Client{HTTPClient: server.Client()}
	_, err := c.FetchBlob(context.Background(), newTestRef(server), Descriptor{Digest: "sha256:" + strings.Repeat("0", 64)})
	if err == nil {
		t.Fatalf("expected a HashMismatch error")
	}
}

func TestVerifyDigestRejectsUnsupportedAlgorithm(t *testing.T) {
	if err := verifyDigest([]byte("x"), "md5:deadbeef"); err == nil {
		t.Fatalf("expected an error for an unsupported digest algorithm")
	}
}
