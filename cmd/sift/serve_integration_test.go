//go:build integration

package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getProjectRoot returns the path to the sift project root
func getProjectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	// cmd/sift/serve_integration_test.go -> project root
	return filepath.Join(filepath.Dir(filename), "..", "..")
}

// startServe builds sift and starts "sift serve", waiting for the ready line.
func startServe(t *testing.T) (*exec.Cmd, io.WriteCloser, *bufio.Scanner) {
	t.Helper()
	projectRoot := getProjectRoot()

	buildCmd := exec.Command("go", "build", "-o", "dist/sift", "./cmd/sift")
	buildCmd.Dir = projectRoot
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(output))

	cmd := exec.Command(filepath.Join(projectRoot, "dist", "sift"), "serve")
	cmd.Dir = projectRoot

	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	require.True(t, waitForLine(scanner, 60*time.Second), "should receive ready signal")

	var ready map[string]interface{}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &ready))
	require.True(t, ready["success"].(bool))
	require.Equal(t, "ready", ready["type"])
	return cmd, stdin, scanner
}

// roundTrip sends one request line and decodes the response.
func roundTrip(t *testing.T, stdin io.Writer, scanner *bufio.Scanner, request string) map[string]interface{} {
	t.Helper()
	_, err := stdin.Write([]byte(request + "\n"))
	require.NoError(t, err)
	require.True(t, waitForLine(scanner, 30*time.Second), "should receive response to %s", request)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &response))
	return response
}

func waitForLine(scanner *bufio.Scanner, timeout time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		done <- scanner.Scan()
	}()

	select {
	case result := <-done:
		return result
	case <-time.After(timeout):
		return false
	}
}

func TestServeIntegration_Match(t *testing.T) {
	cmd, stdin, scanner := startServe(t)
	defer func() {
		stdin.Close()
		cmd.Process.Kill()
	}()

	response := roundTrip(t, stdin, scanner, `{"type":"match","payload":{"text":"Honestly, you're overreacting.","set":"default"}}`)
	assert.True(t, response["success"].(bool), "match should succeed")
	assert.Equal(t, "match", response["type"])

	data := response["data"].(map[string]interface{})
	matches := data["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, "sift.gaslighting.3", matches[0].(map[string]interface{})["pattern_label"])
}

func TestServeIntegration_CompileRelease(t *testing.T) {
	cmd, stdin, scanner := startServe(t)
	defer func() {
		stdin.Close()
		cmd.Process.Kill()
	}()

	response := roundTrip(t, stdin, scanner, `{"type":"compile","payload":{"patterns":[{"label":"t.calm","pattern":"calm down"}]}}`)
	require.True(t, response["success"].(bool))
	assert.Equal(t, 0.0, response["data"].(map[string]interface{})["handle"])

	for i := 0; i < 3; i++ {
		response = roundTrip(t, stdin, scanner, `{"type":"match_compiled","payload":{"handle":0,"text":"please CALM DOWN"}}`)
		require.True(t, response["success"].(bool), "match %d should succeed", i)
		matches := response["data"].(map[string]interface{})["matches"].([]interface{})
		assert.Len(t, matches, 1)
	}

	response = roundTrip(t, stdin, scanner, `{"type":"release","payload":{"handle":0}}`)
	require.True(t, response["success"].(bool))
	assert.Equal(t, 0.0, response["data"].(map[string]interface{})["live"])

	response = roundTrip(t, stdin, scanner, `{"type":"match_compiled","payload":{"handle":0,"text":"calm down"}}`)
	assert.False(t, response["success"].(bool))
	assert.Equal(t, "InvalidConfiguration", response["kind"])
}

func TestServeIntegration_AnalyzeBatch(t *testing.T) {
	cmd, stdin, scanner := startServe(t)
	defer func() {
		stdin.Close()
		cmd.Process.Kill()
	}()

	response := roundTrip(t, stdin, scanner, `{"type":"analyze_batch","payload":{"items":[{"source":"a.txt","content":"Thanks, see you soon."},{"source":"b.txt","content":"It's all your fault and you're overreacting."}]}}`)
	assert.True(t, response["success"].(bool), "batch analysis should succeed")
	assert.Equal(t, "analyze_batch", response["type"])

	data := response["data"].(map[string]interface{})
	assert.Len(t, data["results"].([]interface{}), 2)
	assert.Equal(t, 1.0, data["detected"])
}

func TestServeIntegration_CloseCommand(t *testing.T) {
	cmd, stdin, _ := startServe(t)

	_, err := stdin.Write([]byte(`{"type":"close","payload":{}}` + "\n"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err, "process should exit cleanly")
	case <-time.After(10 * time.Second):
		cmd.Process.Kill()
		t.Fatal("process did not exit in time after close command")
	}
}
