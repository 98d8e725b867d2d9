package e2e

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	server := fakeServer(t)

	_, stderr, err := runSCRS(t, binaryPath, home, strings.NewReader("pw\n"),
		"login",
		"--server", server.URL+"/api/",
		"--username", "alice",
		"--password-stdin",
	)
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runSCRS(t, binaryPath, home, nil, "terrain", "W1N1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Terrain W1N1")

	stdout, stderr, err = runSCRS(t, binaryPath, home, nil, "cache", "stats")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "path: "+filepath.Join(home, ".cache", "scrs"))
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/signin", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"ok":1,"token":"smoke-token"}`)
	})
	mux.HandleFunc("/api/game/room-terrain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"ok":1,"terrain":[{"room":%q,"terrain":%q}]}`, r.URL.Query().Get("room"), strings.Repeat("1", 2500))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "scrs-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/scrs")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build scrs binary: %s", string(output))
	return binaryPath
}

func runSCRS(t *testing.T, binaryPath, home string, stdin *strings.Reader, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "XDG_CACHE_HOME="+filepath.Join(home, ".cache"), "SCRS_SECRETS_BACKEND=file")
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
