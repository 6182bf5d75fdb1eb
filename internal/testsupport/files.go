package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is an ISO BMFF ftyp box so sniffers treat fixtures as MP4.
var mp4Header = []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'}

// WriteSourceVideo writes a placeholder upload of size bytes, creating parent
// directories. The bytes are not decodable; tests stub the decoder.
func WriteSourceVideo(t testing.TB, path string, size int) {
	t.Helper()
	if size < len(mp4Header) {
		size = len(mp4Header)
	}
	data := append(append([]byte(nil), mp4Header...), bytes.Repeat([]byte{0x42}, size-len(mp4Header))...)
	writeFixture(t, path, data)
}

// WriteSRT writes SubRip text verbatim.
func WriteSRT(t testing.TB, path, contents string) {
	t.Helper()
	writeFixture(t, path, []byte(contents))
}

func writeFixture(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
