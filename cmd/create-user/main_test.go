package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pixeon-io/pixeon/internal/database"
	"github.com/pixeon-io/pixeon/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "pixeon.db")
	t.Setenv("DATABASE_URL", url)
	t.Setenv("SECRET_KEY", "test-secret")
	return url
}

func TestRunWithFlags(t *testing.T) {
	url := setupEnv(t)
	var out bytes.Buffer

	err := run(context.Background(), options{
		username: "testuser",
		email:    "test@example.com",
		password: "testpass123",
	}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Created user testuser")

	db, err := database.Open(context.Background(), url, logging.Discard())
	require.NoError(t, err)
	defer db.Close()

	user, err := db.GetUserByUsername(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
}

func TestRunPrompts(t *testing.T) {
	setupEnv(t)

	original := readPassword
	defer func() { readPassword = original }()
	readPassword = func() ([]byte, error) { return []byte("testpass123"), nil }

	var out bytes.Buffer
	err := run(context.Background(), options{}, strings.NewReader("prompted\nprompted@example.com\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Username: ")
	assert.Contains(t, out.String(), "Created user prompted")
}

func TestRunRejectsDuplicate(t *testing.T) {
	setupEnv(t)
	opts := options{username: "dup", email: "dup@example.com", password: "testpass123"}

	require.NoError(t, run(context.Background(), opts, strings.NewReader(""), &bytes.Buffer{}))

	err := run(context.Background(), opts, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, "username already registered", err.Error())
}

func TestRunShortPassword(t *testing.T) {
	setupEnv(t)

	err := run(context.Background(), options{username: "u", email: "u@example.com", password: "short"}, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
}
