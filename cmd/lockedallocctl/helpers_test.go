package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON and returns it decoded
func assertJSON(t *testing.T, output string) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, output)
	}
	return result
}

// withGlobals restores global flag values after a test
func withGlobals(t *testing.T) {
	t.Helper()
	saved := []interface{}{verbose, quiet, jsonOut, stressWorkers, stressIterations,
		stressMaxSize, stressHeld, stressPoolStep, stressPoolSize, stressRequireLocked}
	t.Cleanup(func() {
		verbose = saved[0].(bool)
		quiet = saved[1].(bool)
		jsonOut = saved[2].(bool)
		stressWorkers = saved[3].(int)
		stressIterations = saved[4].(int)
		stressMaxSize = saved[5].(int)
		stressHeld = saved[6].(int)
		stressPoolStep = saved[7].(int)
		stressPoolSize = saved[8].(int)
		stressRequireLocked = saved[9].(bool)
	})
}
