package npxl

import (
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(ioutil.Discard, "", 0)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, ioutil.WriteFile(file, []byte(content), 0644))
	return file
}
