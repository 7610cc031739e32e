package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildArgs(t *testing.T) {
	in := []string{"daemon", "--detach", "--addr", "127.0.0.1:9000", "--detach=true", "-d", "/data"}
	got := childArgs(in)
	assert.Equal(t, []string{"daemon", "--addr", "127.0.0.1:9000", "-d", "/data", "--child"}, got)
	assert.Len(t, in, 7, "input must not be modified")
}

func TestAgentFiles_ClaimAndRelease(t *testing.T) {
	dir := t.TempDir()
	files := agentFiles{state: filepath.Join(dir, "agent", "budgetboxd.json"), log: filepath.Join(dir, "budgetboxd.log")}

	_, ok := files.running()
	assert.False(t, ok)

	info := agentInfo{PID: os.Getpid(), Addr: "127.0.0.1:8788", StartedAt: time.Now(), Month: "2025-11", Account: "a@b.c"}
	require.NoError(t, files.claim(info))

	pid, ok := files.running()
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)

	got, err := files.load()
	require.NoError(t, err)
	assert.Equal(t, "2025-11", got.Month)
	assert.Equal(t, "a@b.c", got.Account)

	files.release()
	_, err = os.Stat(files.state)
	assert.True(t, os.IsNotExist(err))
}

func TestAgentFiles_StaleStateIsRemoved(t *testing.T) {
	files := agentFiles{state: filepath.Join(t.TempDir(), "budgetboxd.json")}
	require.NoError(t, os.WriteFile(files.state, []byte("not json"), 0o600))

	_, ok := files.running()
	assert.False(t, ok)
	_, err := os.Stat(files.state)
	assert.True(t, os.IsNotExist(err))
}
