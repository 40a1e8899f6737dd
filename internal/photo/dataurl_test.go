package photo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURLRoundTrip(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff, 0x00, 0x01}

	encoded := EncodeDataURL("image/jpeg", raw)
	data, mimeType, err := DecodeDataURL(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestDecodeDataURL_DefaultsToJPEG(t *testing.T) {
	_, mimeType, err := DecodeDataURL("data:;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestDecodeDataURL_Rejects(t *testing.T) {
	_, _, err := DecodeDataURL("no comma here")
	assert.Error(t, err)

	_, _, err = DecodeDataURL("data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "photo_chantier_12.jpg", SanitizeFilename("photo chantier 12.jpg"))
	assert.Equal(t, "re_u__1_.PNG", SanitizeFilename("reçu (1).PNG"))
	assert.Equal(t, "ok-name.v2.jpg", SanitizeFilename("ok-name.v2.jpg"))
}

func TestObjectKey(t *testing.T) {
	ts := time.UnixMilli(1735000000000)

	// The sanitized name keeps its extension and the key template appends
	// .jpg on top, so uploaded keys carry the doubled suffix.
	key := ObjectKey("rap-9", CategoryProblemes, "fuite d'eau.jpg", ts)
	assert.Equal(t, "rap-9/problemes/1735000000000_fuite_d_eau.jpg.jpg", key)

	key = ObjectKey("rap-9", CategoryAvant, "mur", ts)
	assert.Equal(t, "rap-9/avant/1735000000000_mur.jpg", key)
}
