package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// generateChunkID derives a stable, content-addressed chunk ID from the
// owning file's path and the chunk's own text, so identical content
// re-chunked from the same file always resolves to the same ID and an
// unrelated edit elsewhere in the file doesn't force re-embedding chunks
// that didn't change.
func generateChunkID(path, content string) string {
	contentSum := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(contentSum[:])[:16]

	combined := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", path, contentHash)))
	return hex.EncodeToString(combined[:])[:16]
}
