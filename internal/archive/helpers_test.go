package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"certgrouper/internal/model"
)

type fixtureEntry struct {
	name    string
	content string
}

// buildZip returns a ZIP holding entries in order. Names ending in "/" become directories.
func buildZip(t *testing.T, method uint16, entries ...fixtureEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		if e.content != "" {
			_, err = w.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func input(t *testing.T, name string, entries ...fixtureEntry) model.InputArchive {
	return model.InputArchive{Name: name, Data: buildZip(t, zip.Deflate, entries...)}
}

// readZip returns path -> content for every entry of data.
func readZip(t *testing.T, data []byte) (map[string]string, []string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string, len(zr.File))
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(b)
		names = append(names, f.Name)
	}
	return out, names
}
