package lang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadParsesKeyValueLines(t *testing.T) {
	dir := t.TempDir()
	body := "# UI strings\n" +
		"disconnect = connection to the server was lost\n" +
		"server_shutdown=the server shut down # inline comment\n" +
		"\n" +
		"line without separator\n" +
		"default_session_name = new session\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en-us.lang"), []byte(body), 0o644))

	table := Load(dir, "en-us")
	require.Equal(t, "connection to the server was lost", table.Text("disconnect"))
	require.Equal(t, "the server shut down", table.Text("server_shutdown"))
	require.Equal(t, "new session", table.Text("default_session_name"))
}

func TestTextFallsBackToKey(t *testing.T) {
	table := Load(t.TempDir(), "en-us") // no file at all
	require.Equal(t, "some_missing_key", table.Text("some_missing_key"))
}
