package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/seo-engine/backend/analyzer"
)

const page = `<html><head><title>Widgets guide</title></head><body><h2>Intro</h2><p>widgets widgets</p></body></html>`

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{serviceName}, args...))
	return out.String(), err
}

func TestExtractCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	out, err := runApp(t, "extract", "--url", srv.URL)
	require.NoError(t, err)
	var features analyzer.PageFeatures
	require.NoError(t, json.Unmarshal([]byte(out), &features))
	assert.Equal(t, "Widgets guide", features.Title)
	assert.Equal(t, 1, features.H2Count)

	out, err = runApp(t, "extract", "--url", srv.URL, "--format", "yaml")
	require.NoError(t, err)
	var fromYAML analyzer.PageFeatures
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, features.Title, fromYAML.Title)
	assert.Equal(t, features.TopKeywords, fromYAML.TopKeywords)
}

func TestExtractCommand_Errors(t *testing.T) {
	_, err := runApp(t, "extract", "--url", "http://127.0.0.1:1/", "--timeout", "200ms")
	assert.Error(t, err)

	_, err = runApp(t, "extract", "--url", "https://example.com/", "--format", "xml")
	assert.Error(t, err)
}

func TestMigrateAndUsageCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "seo.db"))
	t.Setenv("DATA_DIR", dir)
	t.Setenv("MAX_COMPETITORS", "")

	_, err := runApp(t, "migrate")
	require.NoError(t, err)

	out, err := runApp(t, "usage")
	require.NoError(t, err)
	assert.Equal(t, "{}\n", out)
}
