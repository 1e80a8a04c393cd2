// Package mocks provides mock implementations for testing.
package mocks

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MockStdio stands in for the standard streams of a line based host. The
// code under test reads requests from it and writes responses to it.
type MockStdio struct {
	stdinReader *io.PipeReader
	stdinWriter *io.PipeWriter

	mu         sync.Mutex
	outputBuf  bytes.Buffer
	outputCond *sync.Cond
}

// NewMockStdio creates a mock whose input is fed with WriteLine.
func NewMockStdio() *MockStdio {
	r, w := io.Pipe()
	m := &MockStdio{stdinReader: r, stdinWriter: w}
	m.outputCond = sync.NewCond(&m.mu)
	return m
}

// Read reads the input written by WriteLine.
func (m *MockStdio) Read(p []byte) (int, error) {
	return m.stdinReader.Read(p)
}

// Write records output.
func (m *MockStdio) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.outputBuf.Write(p)
	m.outputCond.Broadcast()
	return n, err
}

// Close ends the input, so readers see EOF.
func (m *MockStdio) Close() error {
	return m.stdinWriter.Close()
}

// WriteLine writes one line of input.
func (m *MockStdio) WriteLine(line string) error {
	_, err := io.WriteString(m.stdinWriter, line+"\n")
	return err
}

// Output returns everything written so far.
func (m *MockStdio) Output() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outputBuf.String()
}

// WaitForLines waits until at least n complete lines were written and
// returns them.
func (m *MockStdio) WaitForLines(n int, timeout time.Duration) ([]string, error) {
	deadline := time.Now().Add(timeout)
	wake := time.AfterFunc(timeout, func() {
		m.mu.Lock()
		m.outputCond.Broadcast()
		m.mu.Unlock()
	})
	defer wake.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		out := m.outputBuf.String()
		if lines := strings.SplitAfter(out, "\n"); strings.Count(out, "\n") >= n {
			for i := range lines {
				lines[i] = strings.TrimSuffix(lines[i], "\n")
			}
			return lines[:n], nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("timeout waiting for %d lines, got: %q", n, out)
		}
		m.outputCond.Wait()
	}
}
