package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestWriter_KnownVectors(t *testing.T) {
	tests := []struct {
		alg  DigestAlgorithm
		want string
	}{
		{SHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{SHA512, "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"},
		{SHA3_256, "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
		{SHA3_512, "b751850b1a57168a5693cd924b6b096e08f621827444f70d884f5d0240d2712e10e116e9192af3c91a7ec57647e3934057340b4cf408d5a56592f8274eec53f0"},
		{BLAKE2b256, "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319"},
		{BLAKE2b512, "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d17d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923"},
	}

	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			var out bytes.Buffer
			dw, err := NewDigestWriter(&out, tt.alg)
			require.NoError(t, err)

			_, err = dw.Write([]byte("a"))
			require.NoError(t, err)
			_, err = dw.Write([]byte("bc"))
			require.NoError(t, err)

			assert.Equal(t, tt.want, dw.Sum())
			assert.Len(t, dw.Sum(), tt.alg.HexLen())
			assert.Equal(t, "abc", out.String())
			assert.Equal(t, int64(3), dw.Written())
		})
	}
}

func TestDigestWriter_NoDigest(t *testing.T) {
	var out bytes.Buffer
	dw, err := NewDigestWriter(&out, NoDigest)
	require.NoError(t, err)

	n, err := dw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, dw.Sum())
	assert.Equal(t, "hello", out.String())
	assert.Zero(t, NoDigest.HexLen())
}

// shortWriter accepts at most limit bytes in total.
type shortWriter struct {
	buf   bytes.Buffer
	limit int
}

func (s *shortWriter) Write(p []byte) (int, error) {
	room := s.limit - s.buf.Len()
	if room >= len(p) {
		return s.buf.Write(p)
	}
	s.buf.Write(p[:room])
	return room, errors.New("short write")
}

func TestDigestWriter_HashesAcceptedBytesOnly(t *testing.T) {
	sw := &shortWriter{limit: 1}
	dw, err := NewDigestWriter(sw, SHA256)
	require.NoError(t, err)

	n, err := dw.Write([]byte("abc"))
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), dw.Written())

	want, err := NewDigestWriter(&bytes.Buffer{}, SHA256)
	require.NoError(t, err)
	_, _ = want.Write([]byte("a"))
	assert.Equal(t, want.Sum(), dw.Sum())
}

func TestParseDigestAlgorithm(t *testing.T) {
	for _, alg := range DigestAlgorithms() {
		got, err := ParseDigestAlgorithm(string(alg))
		require.NoError(t, err)
		assert.Equal(t, alg, got)
	}

	got, err := ParseDigestAlgorithm(" SHA-512 ")
	assert.ErrorIs(t, err, ErrUnknownDigest)
	assert.Equal(t, NoDigest, got)

	for _, none := range []string{"", "none", "NONE"} {
		got, err := ParseDigestAlgorithm(none)
		require.NoError(t, err)
		assert.Equal(t, NoDigest, got)
	}

	got, err = ParseDigestAlgorithm("SHA3-256")
	require.NoError(t, err)
	assert.Equal(t, SHA3_256, got)
}
