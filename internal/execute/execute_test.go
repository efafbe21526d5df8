package execute

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "python", req.Language)
		assert.Equal(t, "3.10.0", req.Version)
		require.Len(t, req.Files, 1)
		assert.Equal(t, "print('x')", req.Files[0].Content)

		json.NewEncoder(w).Encode(Result{Run: &Stage{Stdout: "x\n"}})
	}))
	defer srv.Close()

	result := New(srv.URL).Run(context.Background(), "python", "print('x')", "3.10.0")
	assert.Empty(t, result.Err)
	assert.Contains(t, result.Rendered(), "x")
}

func TestRunCompileError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{
			Compile: &Stage{Code: 1, Stderr: "main.c:1: error: expected ';'"},
		})
	}))
	defer srv.Close()

	result := New(srv.URL).Run(context.Background(), "c", "int main( {}", "10.2.0")
	assert.NotEmpty(t, result.Compile.Stderr)
	assert.Contains(t, result.Rendered(), "expected ';'")
}

func TestRunRuntimeErrorFallsBackToStderr(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{
			Run: &Stage{Code: 1, Stderr: "NameError: name 'y' is not defined"},
		})
	}))
	defer srv.Close()

	result := New(srv.URL).Run(context.Background(), "python", "print(y)", "3.10.0")
	assert.NotEmpty(t, result.Run.Stderr)
	assert.Contains(t, result.Rendered(), "NameError")
}

func TestRunTransportFailureIsSynthetic(t *testing.T) {
	// Point at a server that is already gone.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	result := New(srv.URL).Run(context.Background(), "python", "print(1)", "3.10.0")
	assert.NotEmpty(t, result.Err)
	assert.Contains(t, result.Rendered(), "Execution failed")
}

func TestRunBadStatusAndBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	result := New(srv.URL).Run(context.Background(), "python", "", "")
	assert.Contains(t, result.Err, "status 502")

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv2.Close()
	result = New(srv2.URL).Run(context.Background(), "python", "", "")
	assert.Contains(t, result.Err, "invalid execution response")
}

func TestRenderedNoOutput(t *testing.T) {
	result := Result{Run: &Stage{}}
	assert.Equal(t, "Program executed with no output.", result.Rendered())
}
